// Package redis caches raw upstream response bodies in Redis so repeated
// forecasts for the same symbol do not re-hit the price provider within the
// TTL. Every Redis failure degrades to a cache miss; a Breaker keeps an
// unreachable server from adding latency to each request.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto-forecast/internal/metrics"
)

const (
	defaultTTL       = 60 * time.Second
	defaultPrefix    = "forecast:upstream:"
	defaultOpTimeout = 250 * time.Millisecond
)

// Config configures the cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	TTL    time.Duration // body lifetime, default 60s
	Prefix string        // key namespace, default "forecast:upstream:"

	// OpTimeout bounds each Redis round trip, default 250ms.
	OpTimeout time.Duration

	// Breaker settings, default 5 failures / 10s.
	MaxFailures  int
	ResetTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = defaultOpTimeout
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 10 * time.Second
	}
	return c
}

// Cache implements marketdata.BodyCache on top of Redis strings.
type Cache struct {
	client  *goredis.Client
	cfg     Config
	breaker *Breaker
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New connects to Redis and pings it.
func New(cfg Config, m *metrics.Metrics, log *slog.Logger) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	c := NewWithClient(client, cfg, m, log)
	c.log.Info("redis cache connected", "addr", cfg.Addr, "ttl", c.cfg.TTL)
	return c, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config, m *metrics.Metrics, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	c := &Cache{
		client:  client,
		cfg:     cfg,
		breaker: NewBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		metrics: m,
		log:     log.With("component", "redis-cache"),
	}
	c.breaker.OnStateChange = func(from, to State) {
		c.log.Warn("cache breaker state change", "from", from.String(), "to", to.String())
		if m != nil {
			m.BreakerState.Set(float64(to))
			if to == StateOpen {
				m.BreakerTrips.Inc()
			}
		}
	}
	return c
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Close releases the connection pool.
func (c *Cache) Close() error { return c.client.Close() }

// Get returns the cached body for key. Misses, Redis errors and an open
// breaker all report false.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	var body []byte
	var found bool

	err := c.breaker.Execute(func() error {
		opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
		defer cancel()

		b, err := c.client.Get(opCtx, c.cfg.Prefix+key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		body, found = b, true
		return nil
	})

	switch {
	case err != nil:
		c.failed("get", key, err)
	case found:
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return body, true
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
	return nil, false
}

// Set stores body under key for the configured TTL. Failures are logged and
// swallowed.
func (c *Cache) Set(ctx context.Context, key string, body []byte) {
	err := c.breaker.Execute(func() error {
		opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
		defer cancel()
		return c.client.Set(opCtx, c.cfg.Prefix+key, body, c.cfg.TTL).Err()
	})
	if err != nil {
		c.failed("set", key, err)
	}
}

// BreakerState exposes the breaker position for health reporting.
func (c *Cache) BreakerState() State { return c.breaker.CurrentState() }

func (c *Cache) failed(op, key string, err error) {
	if c.metrics != nil {
		c.metrics.CacheErrors.Inc()
	}
	if errors.Is(err, ErrBreakerOpen) {
		return
	}
	c.log.Warn("cache operation failed", "op", op, "key", key, "error", err)
}
