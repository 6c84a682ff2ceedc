// Package engine runs one forecast request end to end: it fetches every
// upstream input concurrently, joins them, then hands the joined inputs to
// the pure Compute step. Nothing is shared between requests.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crypto-forecast/internal/forecast"
	"crypto-forecast/internal/logger"
	"crypto-forecast/internal/metrics"
	"crypto-forecast/internal/model"
	"crypto-forecast/internal/signal"
)

// Variant selects which inputs a forecast gathers and which optional fields
// the bundle carries.
type Variant int

const (
	// Standard fetches price, daily and hourly history; the bundle carries
	// dailyHistory and hourlyHistory.
	Standard Variant = iota
	// Enhanced fetches price, daily and minute history plus the order book
	// and sentiment corpus when those sources are configured; the bundle
	// carries minuteData, sentiment and orderBookPressure.
	Enhanced
)

func (v Variant) String() string {
	if v == Enhanced {
		return "enhanced"
	}
	return "standard"
}

// Limits are the bar counts requested per granularity.
type Limits struct {
	Daily  int `yaml:"daily"`
	Hourly int `yaml:"hourly"`
	Minute int `yaml:"minute"`
}

// DefaultLimits returns 365 daily, 168 hourly and 120 minute bars.
func DefaultLimits() Limits {
	return Limits{Daily: 365, Hourly: 168, Minute: 120}
}

// Config holds the tunables of the pipeline.
type Config struct {
	UpstreamTimeout time.Duration
	Limits          Limits
	Weights         signal.Weights
	Horizons        []forecast.Horizon
	Lexicon         signal.Lexicon
}

// DefaultConfig returns the compiled-in pipeline settings.
func DefaultConfig() Config {
	return Config{
		UpstreamTimeout: 8 * time.Second,
		Limits:          DefaultLimits(),
		Weights:         signal.DefaultWeights(),
		Horizons:        forecast.DefaultHorizons(),
		Lexicon:         signal.DefaultLexicon(),
	}
}

// Validate checks the weights, horizons and limits.
func (c Config) Validate() error {
	var errs []error
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream timeout must be positive, got %s", c.UpstreamTimeout))
	}
	if c.Limits.Daily < 1 || c.Limits.Hourly < 1 || c.Limits.Minute < 1 {
		errs = append(errs, fmt.Errorf("history limits must be positive, got %+v", c.Limits))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := forecast.ValidateHorizons(c.Horizons); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Engine is safe for concurrent use.
type Engine struct {
	market  model.MarketData
	book    model.OrderBookSource
	corpus  model.CorpusSource
	cfg     Config
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
	log     *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithOrderBook enables order-book pressure for Enhanced forecasts.
func WithOrderBook(src model.OrderBookSource) Option {
	return func(e *Engine) { e.book = src }
}

// WithCorpus enables sentiment scoring for Enhanced forecasts.
func WithCorpus(src model.CorpusSource) Option {
	return func(e *Engine) { e.corpus = src }
}

// WithMetrics records upstream and compute metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHealth reports upstream outcomes to the health endpoint.
func WithHealth(h *metrics.HealthStatus) Option {
	return func(e *Engine) { e.health = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over the given price/history provider.
func New(market model.MarketData, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		market: market,
		cfg:    cfg,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")
	return e
}

// Forecast builds the bundle for symbol. Any upstream or normalizer failure
// fails the whole request; no partial bundle is returned.
func (e *Engine) Forecast(ctx context.Context, symbol string, v Variant) (*model.ForecastBundle, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	in, err := e.gather(ctx, sym, v)
	if e.health != nil {
		e.health.RecordUpstream(err)
	}
	if err != nil {
		e.log.Warn("forecast inputs unavailable",
			append(logger.LogWithTrace(ctx), "symbol", sym, "variant", v.String(), "kind", Kind(err), "error", err)...)
		return nil, err
	}

	start := time.Now()
	bundle := Compute(in, e.cfg, e.now())
	if e.metrics != nil {
		e.metrics.ComputeDur.Observe(time.Since(start).Seconds())
		e.metrics.ForecastsTotal.Inc()
	}
	attrs := append(logger.LogWithTrace(ctx), "symbol", sym, "variant", v.String(),
		"series", in.Daily.Key(), "bars", in.Daily.Len(), "price", bundle.CurrentPrice)
	if last, ok := in.Daily.Last(); ok {
		attrs = append(attrs, "last_bar", last.TS())
	}
	e.log.Debug("forecast computed", attrs...)
	return bundle, nil
}

// Price returns the latest price for symbol.
func (e *Engine) Price(ctx context.Context, symbol string) (string, float64, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return "", 0, err
	}
	var price float64
	err = e.call(ctx, "price", func(ctx context.Context) error {
		var err error
		price, err = e.market.CurrentPrice(ctx, sym)
		return err
	})
	return sym, price, err
}

// gather runs every fetch the variant needs concurrently. The first failure
// cancels the rest and is the one reported.
func (e *Engine) gather(ctx context.Context, sym string, v Variant) (Inputs, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := Inputs{Symbol: sym, Variant: v}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	run := func(source string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.call(ctx, source, fn); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}()
	}

	run("price", func(ctx context.Context) error {
		var err error
		in.Price, err = e.market.CurrentPrice(ctx, sym)
		return err
	})
	run("daily", func(ctx context.Context) error {
		var err error
		in.Daily, err = e.market.History(ctx, sym, model.Day, e.cfg.Limits.Daily)
		return err
	})

	switch v {
	case Standard:
		run("hourly", func(ctx context.Context) error {
			var err error
			in.Hourly, err = e.market.History(ctx, sym, model.Hour, e.cfg.Limits.Hourly)
			return err
		})
	case Enhanced:
		run("minute", func(ctx context.Context) error {
			var err error
			in.Minute, err = e.market.History(ctx, sym, model.Minute, e.cfg.Limits.Minute)
			return err
		})
		if e.book != nil {
			run("orderbook", func(ctx context.Context) error {
				ob, err := e.book.OrderBook(ctx, sym)
				if err == nil {
					in.OrderBook = &ob
				}
				return err
			})
		}
		if e.corpus != nil {
			run("corpus", func(ctx context.Context) error {
				texts, err := e.corpus.Corpus(ctx, sym)
				if err == nil {
					if texts == nil {
						texts = []string{}
					}
					in.Corpus = texts
				}
				return err
			})
		}
	}

	wg.Wait()
	if firstErr != nil {
		return Inputs{}, firstErr
	}
	return in, nil
}

// call runs one upstream fetch under its own deadline and normalizes the
// error kind.
func (e *Engine) call(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	err := classify(callCtx, fn(callCtx))
	if e.metrics != nil {
		e.metrics.UpstreamDur.WithLabelValues(source).Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.UpstreamFailures.WithLabelValues(source, Kind(err)).Inc()
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrUpstreamTimeout),
		errors.Is(err, model.ErrDataUnavailable),
		errors.Is(err, model.ErrValidation):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", model.ErrUpstreamTimeout, err)
	default:
		return fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
	}
}

// Kind names the error class for logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, model.ErrDataUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
