// Package main renders stored scan history: lists recent scans or renders
// one persisted scan as Markdown/CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"leadlag-scanner/internal/reporting"
	chstore "leadlag-scanner/internal/storage/clickhouse"
)

func main() {
	// Parse flags
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (or CLICKHOUSE_DSN)")
	scanID := flag.String("scan-id", "", "Scan to render; empty lists recent scans")
	limit := flag.Int("limit", 10, "Number of recent scan IDs to list")
	outputDir := flag.String("output-dir", "", "Write results.csv and report.md here instead of stdout")
	flag.Parse()

	_ = godotenv.Load()
	if *clickhouseDSN == "" {
		*clickhouseDSN = os.Getenv("CLICKHOUSE_DSN")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if *clickhouseDSN == "" {
		logger.Fatal().Msg("--clickhouse-dsn or CLICKHOUSE_DSN is required")
	}

	ctx := context.Background()
	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to clickhouse")
	}
	defer conn.Close()

	generator := reporting.NewGenerator(chstore.NewScanResultStore(conn))

	if *scanID == "" {
		ids, err := generator.RecentScanIDs(ctx, *limit)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list scans")
		}
		if len(ids) == 0 {
			fmt.Println("no persisted scans")
			return
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	report, err := generator.FromHistory(ctx, *scanID)
	if err != nil {
		logger.Fatal().Err(err).Str("scan_id", *scanID).Msg("failed to load scan")
	}

	if *outputDir == "" {
		fmt.Print(reporting.RenderMarkdown(report))
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create output dir")
	}
	files := map[string]string{
		"results.csv": reporting.RenderResultsCSV(report.Results),
		"report.md":   reporting.RenderMarkdown(report),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0o644); err != nil {
			logger.Fatal().Err(err).Str("file", name).Msg("failed to write report file")
		}
	}
	logger.Info().Str("scan_id", *scanID).Str("output_dir", *outputDir).Msg("report written")
}
