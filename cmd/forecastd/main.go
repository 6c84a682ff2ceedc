package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"crypto-forecast/config"
	"crypto-forecast/internal/engine"
	"crypto-forecast/internal/gateway"
	"crypto-forecast/internal/logger"
	"crypto-forecast/internal/marketdata"
	"crypto-forecast/internal/metrics"
	"crypto-forecast/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "forecastd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init("forecastd", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", "addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	// ---- Upstream clients ----
	opts := []marketdata.Option{marketdata.WithTimeout(cfg.HTTPClientTimeout)}
	if cfg.CacheEnabled() {
		cache, err := redis.New(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		}, m, log)
		if err != nil {
			// The cache is an optimization; run without it.
			log.Warn("redis cache disabled", "error", err)
		} else {
			defer cache.Close()
			opts = append(opts, marketdata.WithCache(cache))
			health.SetRedisEnabled(true)
			health.StartLivenessChecker(ctx, cache.Client(), 15*time.Second)
		}
	}

	withCommon := func(extra ...marketdata.Option) []marketdata.Option {
		return append(append([]marketdata.Option{}, opts...), extra...)
	}

	market := marketdata.NewCryptoCompare(withCommon(
		marketdata.WithBaseURL(cfg.CryptoCompareURL),
		marketdata.WithAPIKey(cfg.CryptoCompareAPIKey),
	)...)

	engineOpts := []engine.Option{
		engine.WithMetrics(m),
		engine.WithHealth(health),
		engine.WithLogger(log),
	}
	if cfg.OrderBookEnabled {
		engineOpts = append(engineOpts, engine.WithOrderBook(marketdata.NewBinance(
			marketdata.WithTimeout(cfg.HTTPClientTimeout),
			marketdata.WithBaseURL(cfg.BinanceURL),
		)))
	}
	if cfg.CorpusEnabled() {
		engineOpts = append(engineOpts, engine.WithCorpus(marketdata.NewFirecrawl(
			marketdata.DefaultCorpusSources(),
			withCommon(
				marketdata.WithBaseURL(cfg.FirecrawlURL),
				marketdata.WithAPIKey(cfg.FirecrawlAPIKey),
			)...,
		)))
	}
	eng := engine.New(market, cfg.Engine(), engineOpts...)

	// ---- HTTP surface ----
	hub := gateway.NewHub(eng, cfg.StreamSchedule, 2*cfg.UpstreamTimeout, m, log)
	if err := hub.Start(); err != nil {
		return fmt.Errorf("stream schedule %q: %w", cfg.StreamSchedule, err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           gateway.NewServer(eng, hub, m, health, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", cfg.HTTPAddr,
			"orderbook", cfg.OrderBookEnabled, "sentiment", cfg.CorpusEnabled(), "cache", cfg.CacheEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()

	select {
	case <-hub.Stop().Done():
	case <-shutdownCtx.Done():
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	log.Info("stopped")
	return nil
}
