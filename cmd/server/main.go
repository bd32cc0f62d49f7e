// Package main implements the entry point for the digest API server,
// which enriches each day's top Hacker News stories with Chinese
// translations and summaries and publishes the result.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// run loads configuration, wires the application together, and blocks
// serving HTTP until shutdown.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"story_limit", cfg.Digest.StoryLimit,
		"batch_size", cfg.Digest.BatchSize)

	ctx := logger.WithLogger(context.Background(), appLogger)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return err
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
		return err
	}

	return app.Run(ctx)
}
