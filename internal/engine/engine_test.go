package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-forecast/internal/metrics"
	"crypto-forecast/internal/model"
)

// ── Fakes ──

type fakeMarket struct {
	price    float64
	series   map[model.Granularity]model.PriceSeries
	errs     map[model.Granularity]error
	priceErr error
	block    bool

	mu    sync.Mutex
	calls []model.Granularity
}

func newFakeMarket(price float64) *fakeMarket {
	return &fakeMarket{
		price: price,
		series: map[model.Granularity]model.PriceSeries{
			model.Day:    rising("BTC", model.Day, 240, 100, 0.5),
			model.Hour:   rising("BTC", model.Hour, 168, 200, 0.01),
			model.Minute: rising("BTC", model.Minute, 120, 219, 0.001),
		},
		errs: map[model.Granularity]error{},
	}
}

func (f *fakeMarket) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.price, f.priceErr
}

func (f *fakeMarket) History(ctx context.Context, symbol string, g model.Granularity, limit int) (model.PriceSeries, error) {
	f.mu.Lock()
	f.calls = append(f.calls, g)
	f.mu.Unlock()
	if err := f.errs[g]; err != nil {
		return model.PriceSeries{}, err
	}
	s := f.series[g]
	s.Symbol = symbol
	return s, nil
}

func (f *fakeMarket) fetched() map[model.Granularity]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[model.Granularity]bool{}
	for _, g := range f.calls {
		out[g] = true
	}
	return out
}

type fakeBook struct{ ob model.OrderBookSnapshot }

func (f fakeBook) OrderBook(ctx context.Context, symbol string) (model.OrderBookSnapshot, error) {
	return f.ob, nil
}

type fakeCorpus struct {
	texts []string
	err   error
}

func (f fakeCorpus) Corpus(ctx context.Context, symbol string) ([]string, error) {
	return f.texts, f.err
}

func rising(sym string, g model.Granularity, n int, start, step float64) model.PriceSeries {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = model.Bar{
			Time:     1_700_000_000 + int64(i)*g.Seconds(),
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			VolumeTo: 1000,
		}
	}
	return model.PriceSeries{Symbol: sym, Granularity: g, Bars: bars}
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(market model.MarketData, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(market, DefaultConfig(), opts...)
}

// ── Tests ──

func TestForecast_Standard(t *testing.T) {
	market := newFakeMarket(220)
	e := newTestEngine(market)

	b, err := e.Forecast(context.Background(), " btc ", Standard)
	require.NoError(t, err)

	assert.Equal(t, "BTC", b.Symbol)
	assert.Equal(t, 220.0, b.CurrentPrice)
	assert.Len(t, b.History, 240)
	assert.Len(t, b.DailyHistory, 240)
	assert.Len(t, b.HourlyHistory, 168)
	assert.Empty(t, b.MinuteData)
	assert.Nil(t, b.Sentiment)
	assert.Nil(t, b.OrderBookPressure)
	assert.Len(t, b.Predictions, 7)
	assert.Equal(t, fixedNow, b.LastUpdated)

	assert.Equal(t, map[model.Granularity]bool{model.Day: true, model.Hour: true}, market.fetched())
}

func TestForecast_FlatMarketIsNeutral(t *testing.T) {
	market := newFakeMarket(100)
	market.series[model.Day] = rising("BTC", model.Day, 60, 100, 0)

	b, err := newTestEngine(market).Forecast(context.Background(), "BTC", Standard)
	require.NoError(t, err)

	assert.Equal(t, 50.0, b.TechnicalAnalysis.RSI)
	assert.Equal(t, "neutral", b.TechnicalAnalysis.MarketSentiment)
	for name, v := range b.Signal.Contributions {
		assert.Zero(t, v, "contribution %s", name)
	}
	assert.Equal(t, 1.0, b.Signal.TrendMultiplier)
	require.NotEmpty(t, b.Predictions)
	for name, p := range b.Predictions {
		assert.InDelta(t, 100.0, p.Price, 1e-9, "horizon %s", name)
	}
}

func TestForecast_EnhancedWithOptionalSources(t *testing.T) {
	market := newFakeMarket(220)
	book := fakeBook{ob: model.OrderBookSnapshot{
		Bids: []model.Level{{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(3)}},
		Asks: []model.Level{{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(1)}},
	}}
	corpus := fakeCorpus{texts: []string{"BTC bullish, going to the moon", "buy the dip"}}

	e := newTestEngine(market, WithOrderBook(book), WithCorpus(corpus))
	b, err := e.Forecast(context.Background(), "BTC", Enhanced)
	require.NoError(t, err)

	assert.Len(t, b.MinuteData, 120)
	assert.Empty(t, b.HourlyHistory)
	require.NotNil(t, b.Sentiment)
	assert.Greater(t, b.Sentiment.Score, 0.0)
	require.NotNil(t, b.OrderBookPressure)
	assert.InDelta(t, 300.0/101.0, *b.OrderBookPressure, 1e-9)
	assert.Contains(t, b.Signal.Contributions, "orderBook")
	assert.Contains(t, b.Signal.Contributions, "sentiment")

	assert.Equal(t, map[model.Granularity]bool{model.Day: true, model.Minute: true}, market.fetched())
}

func TestForecast_EnhancedWithoutOptionalSources(t *testing.T) {
	b, err := newTestEngine(newFakeMarket(220)).Forecast(context.Background(), "ETH", Enhanced)
	require.NoError(t, err)
	assert.Nil(t, b.Sentiment)
	assert.Nil(t, b.OrderBookPressure)
	assert.NotContains(t, b.Signal.Contributions, "orderBook")
}

func TestForecast_MalformedHistoryFailsWholeRequest(t *testing.T) {
	market := newFakeMarket(220)
	market.errs[model.Day] = model.Unavailable("BTC day history: missing Data.Data")

	b, err := newTestEngine(market).Forecast(context.Background(), "BTC", Standard)
	assert.Nil(t, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDataUnavailable))
	assert.Equal(t, "unavailable", Kind(err))
}

func TestForecast_OptionalSourceFailureFailsRequest(t *testing.T) {
	e := newTestEngine(newFakeMarket(220), WithCorpus(fakeCorpus{err: model.Unavailable("scrape quota")}))
	b, err := e.Forecast(context.Background(), "BTC", Enhanced)
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, model.ErrDataUnavailable))
}

func TestForecast_UpstreamTimeout(t *testing.T) {
	market := newFakeMarket(220)
	market.block = true

	cfg := DefaultConfig()
	cfg.UpstreamTimeout = 20 * time.Millisecond
	e := New(market, cfg)

	start := time.Now()
	b, err := e.Forecast(context.Background(), "BTC", Standard)
	assert.Nil(t, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUpstreamTimeout), err.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestForecast_InvalidSymbol(t *testing.T) {
	market := newFakeMarket(220)
	_, err := newTestEngine(market).Forecast(context.Background(), "BTC/USD", Standard)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Empty(t, market.fetched(), "no upstream call for a rejected symbol")
}

func TestForecast_Deterministic(t *testing.T) {
	e := newTestEngine(newFakeMarket(220))
	a, err := e.Forecast(context.Background(), "BTC", Standard)
	require.NoError(t, err)
	b, err := e.Forecast(context.Background(), "BTC", Standard)
	require.NoError(t, err)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.JSONEq(t, string(ja), string(jb))
}

// barrierMarket only answers once n calls are in flight at the same time.
type barrierMarket struct {
	*fakeMarket
	n       int32
	arrived int32
	ready   chan struct{}
}

func (b *barrierMarket) wait(ctx context.Context) error {
	if atomic.AddInt32(&b.arrived, 1) == b.n {
		close(b.ready)
	}
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *barrierMarket) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	return b.fakeMarket.CurrentPrice(ctx, symbol)
}

func (b *barrierMarket) History(ctx context.Context, symbol string, g model.Granularity, limit int) (model.PriceSeries, error) {
	if err := b.wait(ctx); err != nil {
		return model.PriceSeries{}, err
	}
	return b.fakeMarket.History(ctx, symbol, g, limit)
}

func TestForecast_FetchesConcurrently(t *testing.T) {
	market := &barrierMarket{fakeMarket: newFakeMarket(220), n: 3, ready: make(chan struct{})}

	cfg := DefaultConfig()
	cfg.UpstreamTimeout = time.Second
	_, err := New(market, cfg).Forecast(context.Background(), "BTC", Standard)
	require.NoError(t, err, "price, daily and hourly must be in flight together")
}

func TestForecast_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(nil)
	h := metrics.NewHealthStatus()
	market := newFakeMarket(220)
	market.errs[model.Hour] = model.Unavailable("boom")

	_, err := newTestEngine(market, WithMetrics(m), WithHealth(h)).Forecast(context.Background(), "BTC", Standard)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamFailures.WithLabelValues("hourly", "unavailable")))
	assert.NotEmpty(t, h.LastUpstreamErr)
}

func TestPrice(t *testing.T) {
	sym, p, err := newTestEngine(newFakeMarket(42.5)).Price(context.Background(), "sol")
	require.NoError(t, err)
	assert.Equal(t, "SOL", sym)
	assert.Equal(t, 42.5, p)

	market := newFakeMarket(0)
	market.priceErr = model.Unavailable("missing USD")
	_, _, err = newTestEngine(market).Price(context.Background(), "SOL")
	assert.True(t, errors.Is(err, model.ErrDataUnavailable))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "validation", Kind(model.ErrValidation))
	assert.Equal(t, "timeout", Kind(model.ErrUpstreamTimeout))
	assert.Equal(t, "unavailable", Kind(model.ErrDataUnavailable))
	assert.Equal(t, "internal", Kind(errors.New("x")))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.UpstreamTimeout = 0
	cfg.Limits.Minute = 0
	assert.Error(t, cfg.Validate())
}
