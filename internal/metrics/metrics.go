package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the forecast service.
type Metrics struct {
	// HTTP surface
	RequestsTotal *prometheus.CounterVec   // labels: route, outcome
	RequestDur    *prometheus.HistogramVec // labels: route

	// Upstream providers
	UpstreamDur      *prometheus.HistogramVec // labels: source
	UpstreamFailures *prometheus.CounterVec   // labels: source, kind

	// Pipeline
	ComputeDur     prometheus.Histogram
	ForecastsTotal prometheus.Counter

	// Response cache
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheErrors  prometheus.Counter
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter

	// Websocket stream
	WSClients      prometheus.Gauge
	StreamPushes   prometheus.Counter
	StreamFailures prometheus.Counter

	registry prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_http_requests_total",
			Help: "HTTP requests by route and outcome",
		}, []string{"route", "outcome"}),
		RequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),

		UpstreamDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_upstream_duration_seconds",
			Help:    "Upstream fetch latency by source",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_upstream_failures_total",
			Help: "Upstream fetch failures by source and error kind",
		}, []string{"source", "kind"}),

		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_compute_duration_seconds",
			Help:    "Indicator, signal and prediction compute latency",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		ForecastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_bundles_total",
			Help: "Forecast bundles produced",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cache_hits_total",
			Help: "Upstream responses served from Redis",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cache_misses_total",
			Help: "Upstream responses not found in Redis",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cache_errors_total",
			Help: "Redis cache operations that failed or were rejected by the breaker",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_cache_breaker_state",
			Help: "Redis cache breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cache_breaker_trips_total",
			Help: "Times the Redis cache breaker tripped open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_ws_clients",
			Help: "Connected websocket stream clients",
		}),
		StreamPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_stream_pushes_total",
			Help: "Forecast bundles pushed to websocket clients",
		}),
		StreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_stream_refresh_failures_total",
			Help: "Scheduled stream refreshes that failed",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDur,
		m.UpstreamDur,
		m.UpstreamFailures,
		m.ComputeDur,
		m.ForecastsTotal,
		m.CacheHits,
		m.CacheMisses,
		m.CacheErrors,
		m.BreakerState,
		m.BreakerTrips,
		m.WSClients,
		m.StreamPushes,
		m.StreamFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HealthStatus is the liveness state reported on /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled    bool      `json:"redis_enabled"`
	RedisConnected  bool      `json:"redis_connected"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	LastUpstreamOK  time.Time `json:"last_upstream_ok"`
	LastUpstreamErr string    `json:"last_upstream_err,omitempty"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetRedisEnabled records whether a Redis cache is configured at all.
func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.RedisConnected = v
	h.mu.Unlock()
}

// RecordUpstream notes the outcome of the latest forecast fetch.
func (h *HealthStatus) RecordUpstream(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.LastUpstreamErr = err.Error()
		return
	}
	h.LastUpstreamOK = time.Now()
	h.LastUpstreamErr = ""
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings Redis every interval until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. The service stays healthy without
// Redis since the cache is optional; a configured but unreachable Redis
// reports degraded with 200 so load balancers keep routing.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.RedisEnabled && !h.RedisConnected {
		status = "degraded"
	}

	lastOK := ""
	if !h.LastUpstreamOK.IsZero() {
		lastOK = h.LastUpstreamOK.Format(time.RFC3339)
	}

	body := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastUpstreamOK  string  `json:"last_upstream_ok"`
		LastUpstreamErr string  `json:"last_upstream_err,omitempty"`
	}{
		Status:          status,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastUpstreamOK:  lastOK,
		LastUpstreamErr: h.LastUpstreamErr,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
