// Package main warms the series cache: fetches every configured series for
// the scan window without running the correlation stage.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"leadlag-scanner/internal/config"
	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
	"leadlag-scanner/internal/fetch/sources"
	"leadlag-scanner/internal/observability"
	"leadlag-scanner/internal/storage"
	"leadlag-scanner/internal/storage/memory"
	"leadlag-scanner/internal/storage/migrations"
	pgstore "leadlag-scanner/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	forceRefresh := flag.Bool("force-refresh", false, "Bypass cache freshness and refetch everything")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	specs, err := cfg.Specs()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid series list")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scan.Timeout)
	defer cancel()

	var cache storage.SeriesCache
	if cfg.Storage.Backend == "postgres" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		cache = pgstore.NewSeriesCache(pool)
	} else {
		// A memory cache makes warm-up a dry run; still useful for
		// verifying source connectivity and credentials.
		cache = memory.NewSeriesCache()
		logger.Warn().Msg("memory cache configured: fetched series will not survive this process")
	}

	metrics := observability.NewMetrics("")
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Info().Str("addr", *metricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	coordinator := fetch.NewCoordinator(fetch.CoordinatorOptions{
		Registry: fetch.Registry{
			domain.SourceBinance: sources.NewBinanceFetcher(),
			domain.SourceYahoo:   sources.NewYahooFetcher(),
			domain.SourceFred:    sources.NewFredFetcher(cfg.Sources.FredAPIKey),
			domain.SourceFng:     sources.NewFngFetcher(),
			domain.SourceTrends:  sources.NewTrendsFetcher(),
			domain.SourceNews:    sources.NewNewsFetcher(),
		},
		Cache:          cache,
		TTL:            ttlPolicy(cfg),
		PerSourceLimit: cfg.Fetch.PerSourceLimit,
		GlobalLimit:    cfg.Fetch.GlobalLimit,
		RetryBackoff:   cfg.Fetch.RetryBackoff,
		Logger:         logger,
		Metrics:        metrics,
	})

	startMs, endMs := cfg.Window(time.Now())
	outcomes := coordinator.FetchAll(ctx, specs, startMs, endMs, *forceRefresh)

	failures := 0
	for _, spec := range specs {
		outcome := outcomes[spec.Name]
		switch {
		case outcome == nil:
			failures++
			fmt.Printf("%-20s ERROR  no outcome\n", spec.Name)
		case outcome.Err != nil:
			failures++
			fmt.Printf("%-20s ERROR  %v (retries=%d)\n", spec.Name, outcome.Err, outcome.Retries)
		case outcome.FromCache:
			fmt.Printf("%-20s CACHED %d observations\n", spec.Name, len(outcome.Series.Points))
		default:
			fmt.Printf("%-20s OK     %d observations\n", spec.Name, len(outcome.Series.Points))
		}
	}

	if failures > 0 {
		logger.Warn().Int("failures", failures).Int("total", len(specs)).Msg("warm-up finished with failures")
		os.Exit(1)
	}
	logger.Info().Int("series", len(specs)).Msg("cache warm-up complete")
}

// ttlPolicy mirrors the scan command: warm-up and scan must agree on which
// cache entries count as fresh.
func ttlPolicy(cfg *config.Config) storage.TTLPolicy {
	policy := storage.DefaultTTLPolicy()
	if len(cfg.Fetch.TTLOverrides) > 0 {
		policy = storage.TTLPolicyWithOverrides(policy, cfg.Fetch.TTLOverrides)
	}
	return policy
}
