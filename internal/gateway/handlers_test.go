package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-forecast/internal/engine"
	"crypto-forecast/internal/logger"
	"crypto-forecast/internal/metrics"
	"crypto-forecast/internal/model"
)

type forecastCall struct {
	symbol  string
	variant engine.Variant
	traceID string
}

type fakeForecaster struct {
	mu    sync.Mutex
	calls []forecastCall
	err   error
	price float64
}

func (f *fakeForecaster) Forecast(ctx context.Context, symbol string, v engine.Variant) (*model.ForecastBundle, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, forecastCall{symbol: sym, variant: v, traceID: logger.TraceID(ctx)})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &model.ForecastBundle{
		Symbol:       sym,
		CurrentPrice: 100,
		Predictions:  map[string]model.Prediction{"day": {Price: 101, Confidence: 0.6}},
		Prediction:   model.Summary{Price: 101, Trend: "up", Confidence: 0.6},
		LastUpdated:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeForecaster) Price(ctx context.Context, symbol string) (string, float64, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return "", 0, err
	}
	return sym, f.price, f.err
}

func (f *fakeForecaster) lastCall() forecastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return forecastCall{}
	}
	return f.calls[len(f.calls)-1]
}

func newTestServer(f Forecaster) (*Server, *metrics.Metrics) {
	m := metrics.NewMetrics(nil)
	return NewServer(f, nil, m, metrics.NewHealthStatus(), nil), m
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestForecastRoutes_VariantAndSymbol(t *testing.T) {
	f := &fakeForecaster{}
	srv, _ := newTestServer(f)
	mux := srv.Routes()

	cases := []struct {
		method, target, body string
		wantSymbol           string
		wantVariant          engine.Variant
	}{
		{http.MethodPost, "/crypto-data", `{"symbol":"eth"}`, "ETH", engine.Standard},
		{http.MethodPost, "/crypto-data", ``, "BTC", engine.Standard},
		{http.MethodPost, "/enhanced-crypto-data", `{"symbol":"SOL"}`, "SOL", engine.Enhanced},
		{http.MethodGet, "/api/forecast?symbol=ada", ``, "ADA", engine.Enhanced},
		{http.MethodGet, "/api/forecast", ``, "BTC", engine.Enhanced},
	}
	for _, tc := range cases {
		rec := do(t, mux, tc.method, tc.target, tc.body)
		require.Equal(t, http.StatusOK, rec.Code, tc.target)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

		call := f.lastCall()
		assert.Equal(t, tc.wantSymbol, call.symbol, tc.target)
		assert.Equal(t, tc.wantVariant, call.variant, tc.target)
		assert.NotEmpty(t, call.traceID, "request id propagates to the engine")
		assert.Equal(t, call.traceID, rec.Header().Get("X-Request-ID"))
	}
}

func TestForecastRoute_BodyShape(t *testing.T) {
	srv, _ := newTestServer(&fakeForecaster{})
	rec := do(t, srv.Routes(), http.MethodPost, "/crypto-data", `{"symbol":"BTC"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"currentPrice", "history", "predictions", "prediction", "technicalAnalysis", "lastUpdated"} {
		assert.Contains(t, body, key)
	}
	assert.NotContains(t, body, "sentiment")
}

func TestOptionsPreflight(t *testing.T) {
	srv, _ := newTestServer(&fakeForecaster{})
	mux := srv.Routes()
	for _, path := range []string{"/crypto-data", "/enhanced-crypto-data", "/api/forecast", "/api/price"} {
		rec := do(t, mux, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "content-type", path)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"unavailable", model.Unavailable("missing Data.Data"), `{"symbol":"BTC"}`, http.StatusBadGateway},
		{"timeout", model.ErrUpstreamTimeout, `{"symbol":"BTC"}`, http.StatusGatewayTimeout},
		{"bad symbol", nil, `{"symbol":"BTC/USD"}`, http.StatusBadRequest},
		{"bad json", nil, `{"symbol":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeForecaster{err: tc.err})
			rec := do(t, srv.Routes(), http.MethodPost, "/enhanced-crypto-data", tc.body)

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"error":"failed to fetch data"}`, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "Data.Data", "cause must not leak")
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(&fakeForecaster{})
	rec := do(t, srv.Routes(), http.MethodDelete, "/crypto-data", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPriceRoute(t *testing.T) {
	srv, _ := newTestServer(&fakeForecaster{price: 64000.5})
	rec := do(t, srv.Routes(), http.MethodGet, "/api/price?symbol=btc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbol":"BTC","currentPrice":64000.5}`, rec.Body.String())
}

func TestRequestMetrics(t *testing.T) {
	srv, m := newTestServer(&fakeForecaster{err: model.ErrUpstreamTimeout})
	mux := srv.Routes()
	do(t, mux, http.MethodGet, "/api/forecast?symbol=BTC", "")
	do(t, mux, http.MethodGet, "/api/forecast?symbol=BTC", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/forecast", "504")))
}

func TestMetricsAndHealthMounted(t *testing.T) {
	srv, _ := newTestServer(&fakeForecaster{})
	mux := srv.Routes()
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/healthz", "").Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(model.ErrValidation))
	assert.Equal(t, http.StatusBadGateway, StatusFor(model.ErrDataUnavailable))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(model.ErrUpstreamTimeout))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}
