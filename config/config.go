// Package config loads service settings from the environment (optionally
// seeded from a .env file) and pipeline tuning from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"crypto-forecast/internal/engine"
	"crypto-forecast/internal/forecast"
	"crypto-forecast/internal/signal"
)

// EnvPrefix namespaces every environment variable, e.g. FORECAST_HTTP_ADDR.
const EnvPrefix = "FORECAST"

// Config holds all application configuration.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Price provider
	CryptoCompareURL    string `envconfig:"CRYPTOCOMPARE_URL" default:"https://min-api.cryptocompare.com"`
	CryptoCompareAPIKey string `envconfig:"CRYPTOCOMPARE_API_KEY"`

	// Order book, off by default. Binance is queried for SYMBOLUSDT, so with
	// it on, symbols without a Binance USDT pair fail every enhanced forecast.
	OrderBookEnabled bool   `envconfig:"ORDERBOOK_ENABLED" default:"false"`
	BinanceURL       string `envconfig:"BINANCE_URL" default:"https://api.binance.com"`

	// Sentiment corpus; disabled without an API key.
	FirecrawlURL    string `envconfig:"FIRECRAWL_URL" default:"https://api.firecrawl.dev"`
	FirecrawlAPIKey string `envconfig:"FIRECRAWL_API_KEY"`

	// UpstreamTimeout bounds each upstream call of a forecast.
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"8s"`
	// HTTPClientTimeout is the transport-level ceiling of the upstream clients.
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"10s"`

	// Response cache; disabled when RedisAddr is empty.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"60s"`

	// Websocket stream refresh, a robfig/cron spec.
	StreamSchedule string `envconfig:"STREAM_SCHEDULE" default:"@every 30s"`

	// TuningFile is an optional YAML file overriding Tuning defaults.
	TuningFile string `envconfig:"TUNING_FILE"`

	Tuning Tuning `ignored:"true"`
}

// Tuning is the YAML-configurable part of the pipeline.
type Tuning struct {
	Weights  signal.Weights     `yaml:"weights"`
	Horizons []forecast.Horizon `yaml:"horizons"`
	Lexicon  signal.Lexicon     `yaml:"lexicon"`
	Limits   engine.Limits      `yaml:"limits"`
}

// DefaultTuning returns the compiled-in tuning.
func DefaultTuning() Tuning {
	return Tuning{
		Weights:  signal.DefaultWeights(),
		Horizons: forecast.DefaultHorizons(),
		Lexicon:  signal.DefaultLexicon(),
		Limits:   engine.DefaultLimits(),
	}
}

// Load reads envFiles (default ".env"; missing files are skipped), then the
// FORECAST_* environment, then the tuning file, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadTuning overlays the YAML at path onto DefaultTuning. An empty path
// returns the defaults. Keys absent from the file keep their default; a
// horizons list, when present, replaces the default list.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.CryptoCompareURL == "" {
		errs = append(errs, errors.New("CRYPTOCOMPARE_URL must not be empty"))
	}
	if c.HTTPClientTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_CLIENT_TIMEOUT must be positive, got %s", c.HTTPClientTimeout))
	}
	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive when REDIS_ADDR is set, got %s", c.CacheTTL))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	if err := c.Engine().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Engine returns the pipeline configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		UpstreamTimeout: c.UpstreamTimeout,
		Limits:          c.Tuning.Limits,
		Weights:         c.Tuning.Weights,
		Horizons:        c.Tuning.Horizons,
		Lexicon:         c.Tuning.Lexicon,
	}
}

// CorpusEnabled reports whether sentiment scraping is configured.
func (c *Config) CorpusEnabled() bool { return c.FirecrawlAPIKey != "" }

// CacheEnabled reports whether the Redis cache is configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }
