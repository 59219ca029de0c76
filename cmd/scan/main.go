// Package main runs a full lead-lag scan: fetch → align → correlate →
// composite → report files.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"leadlag-scanner/internal/config"
	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
	"leadlag-scanner/internal/fetch/sources"
	"leadlag-scanner/internal/observability"
	"leadlag-scanner/internal/reporting"
	"leadlag-scanner/internal/scanner"
	"leadlag-scanner/internal/storage"
	chstore "leadlag-scanner/internal/storage/clickhouse"
	"leadlag-scanner/internal/storage/memory"
	"leadlag-scanner/internal/storage/migrations"
	pgstore "leadlag-scanner/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	scanID := flag.String("scan-id", "", "Scan identifier for persisted results (default: timestamp)")
	outputDir := flag.String("output-dir", "out", "Output directory for report files")
	forceRefresh := flag.Bool("force-refresh", false, "Bypass cache freshness and refetch everything")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	logger := newLogger(*verbose)

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	specs, err := cfg.Specs()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid series list")
	}

	if *scanID == "" {
		*scanID = time.Now().UTC().Format("20060102T150405Z")
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scan.Timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("cancelling scan")
		cancel()
	}()

	// Series cache backend
	cache, cleanup, err := openSeriesCache(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open series cache")
	}
	defer cleanup()

	// Optional durable scan history
	var resultStore storage.ScanResultStore = memory.NewScanResultStore()
	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := chstore.OpenDatabase(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to scan history store")
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare scan history store")
		}
		resultStore = chstore.NewScanResultStore(conn)
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
		Registry:       buildRegistry(cfg),
		Cache:          cache,
		TTL:            ttlPolicy(cfg),
		PerSourceLimit: cfg.Fetch.PerSourceLimit,
		GlobalLimit:    cfg.Fetch.GlobalLimit,
		RetryBackoff:   cfg.Fetch.RetryBackoff,
		Logger:         logger,
		Metrics:        metrics,
	})

	s := scanner.New(scanner.Options{
		Coordinator: coordinator,
		ResultStore: resultStore,
		Logger:      logger,
		Metrics:     metrics,
	})

	startMs, endMs := cfg.Window(time.Now())
	result, err := s.Run(ctx, domain.ScanRequest{
		ScanID:       *scanID,
		StartMs:      startMs,
		EndMs:        endMs,
		Target:       cfg.Scan.Target,
		MaxLag:       cfg.Scan.MaxLag,
		TopN:         cfg.Scan.TopN,
		MinSamples:   cfg.Scan.MinSamples,
		Resolution:   domain.Resolution(cfg.Scan.Resolution),
		ForceRefresh: *forceRefresh,
		Specs:        specs,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("scan failed")
	}

	if err := writeReports(*outputDir, result); err != nil {
		logger.Fatal().Err(err).Msg("failed to write reports")
	}

	for _, r := range result.Results {
		fmt.Printf("%-20s lag %+d  corr %+.4f  n=%d  %s\n",
			r.Series, r.Lag, r.Corr, r.SampleSize, r.Strength())
	}
	logger.Info().Str("output_dir", *outputDir).Msg("reports written")
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// openSeriesCache returns the configured cache backend and a cleanup func.
func openSeriesCache(ctx context.Context, cfg *config.Config) (storage.SeriesCache, func(), error) {
	if cfg.Storage.Backend == "memory" {
		return memory.NewSeriesCache(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewSeriesCache(pool), pool.Close, nil
}

func buildRegistry(cfg *config.Config) fetch.Registry {
	return fetch.Registry{
		domain.SourceBinance: sources.NewBinanceFetcher(),
		domain.SourceYahoo:   sources.NewYahooFetcher(),
		domain.SourceFred:    sources.NewFredFetcher(cfg.Sources.FredAPIKey),
		domain.SourceFng:     sources.NewFngFetcher(),
		domain.SourceTrends:  sources.NewTrendsFetcher(),
		domain.SourceNews:    sources.NewNewsFetcher(),
	}
}

func ttlPolicy(cfg *config.Config) storage.TTLPolicy {
	policy := storage.DefaultTTLPolicy()
	if len(cfg.Fetch.TTLOverrides) > 0 {
		policy = storage.TTLPolicyWithOverrides(policy, cfg.Fetch.TTLOverrides)
	}
	return policy
}

func writeReports(dir string, result *domain.ScanResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	report := reporting.NewGenerator(nil).FromScanResult(result)
	files := map[string]string{
		"results.csv":     reporting.RenderResultsCSV(report.Results),
		"composite.csv":   reporting.RenderCompositeCSV(report.Composite),
		"diagnostics.csv": reporting.RenderDiagnosticsCSV(report.Diagnostics),
		"report.md":       reporting.RenderMarkdown(report),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
