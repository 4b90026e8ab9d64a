package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/ingest"
	"github.com/askdb/askdb/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-ingest")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	fs := flag.NewFlagSet("askdb-ingest", flag.ExitOnError)
	locator := fs.String("db", cfg.Database.Locator, "DuckDB file path to load into")
	file := fs.String("file", "", "CSV, Parquet, or JSON file to load")
	table := fs.String("table", "", "target table name (defaults to the file stem)")
	_ = fs.Parse(os.Args[1:])

	logger := observability.NewLogger(cfg, os.Stdout)

	if *file == "" {
		logger.Error("-file is required")
		os.Exit(2)
	}

	ctx := context.Background()
	handle, err := database.Open(ctx, database.Config{Locator: *locator})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = handle.Close() }()

	report, err := ingest.LoadFile(ctx, handle, *file, *table)
	if err != nil {
		logger.Error("ingestion failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("file loaded",
		slog.String("file", *file),
		slog.String("table", report.Table),
		slog.Int64("rows", report.Rows),
		slog.String("duration", report.Duration.String()),
	)
}
