package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdb/askdb/internal/agent"
	"github.com/askdb/askdb/internal/cli/askdbchat"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	fs := flag.NewFlagSet("askdb", flag.ExitOnError)
	locator := fs.String("db", cfg.Database.Locator, "DuckDB file path or postgres:// DSN")
	verbose := fs.Bool("verbose", false, "log each agent round and tool call")
	_ = fs.Parse(os.Args[1:])

	// The chat loop writes to stdout; keep logs on stderr.
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle, err := database.Open(ctx, database.Config{
		Locator:         *locator,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = handle.Close() }()

	model, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:    cfg.AI.BaseURL,
		APIKey:     cfg.AI.APIKey,
		APIVersion: cfg.AI.APIVersion,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	questionAgent, err := agent.New(agent.Config{
		Model:       model,
		Handle:      handle,
		Logger:      logger,
		Temperature: cfg.AI.Temperature,
		Verbose:     *verbose,
	})
	if err != nil {
		logger.Error("failed to initialize agent", slog.Any("error", err))
		os.Exit(1)
	}

	session := &askdbchat.Session{
		Agent:   questionAgent,
		Schema:  schema.NewInspector(handle),
		Locator: handle.Locator(),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Debug:   *verbose,
	}
	if err := session.Run(ctx); err != nil {
		logger.Error("chat session failed", slog.Any("error", err))
		os.Exit(1)
	}
}
