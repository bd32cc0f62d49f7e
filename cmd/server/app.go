package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/fetcher"
	"github.com/phrazzld/digest-api/internal/platform/gemini"
	"github.com/phrazzld/digest-api/internal/platform/hackernews"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/publish"
	"github.com/phrazzld/digest-api/internal/render"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore  store.TaskStore
	articles   store.ArticleStore
	batchAudit store.BatchAuditStore

	executor *task.Executor
}

// newApplication creates a new application instance with all
// dependencies initialized. It accepts core dependencies like
// configuration, logger, and database connection that must be
// established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.articles = postgres.NewPostgresArticleStore(db, logger)
	app.batchAudit = postgres.NewPostgresBatchAuditStore(db, logger)

	source, err := hackernews.NewClient(logger.With("component", "hackernews"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize story source: %w", err)
	}

	contents, err := fetcher.NewFetcher(
		logger.With("component", "fetcher"),
		cfg.Digest.FetchWorkers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content fetcher: %w", err)
	}

	enricher, err := gemini.NewEnricher(ctx, logger.With("component", "enricher"), gemini.Config{
		APIKey:            cfg.LLM.GeminiAPIKey,
		ModelName:         cfg.LLM.ModelName,
		MaxRetries:        cfg.LLM.MaxRetries,
		RetryDelaySeconds: cfg.LLM.RetryDelaySeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize enricher: %w", err)
	}
	logger.Info("LLM enricher initialized", "model", cfg.LLM.ModelName)

	renderer, err := render.NewMarkdownRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	publisher, err := setupPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	app.executor, err = task.NewExecutor(
		app.taskStore,
		app.articles,
		app.batchAudit,
		store.NewTxRunner(db),
		source,
		nil,
		contents,
		source,
		enricher,
		renderer,
		publisher,
		logger.With("component", "executor"),
		task.Config{
			StoryLimit:          cfg.Digest.StoryLimit,
			BatchSize:           cfg.Digest.BatchSize,
			MaxRetries:          cfg.Digest.MaxRetries,
			CommentLimit:        cfg.Digest.CommentLimit,
			SummaryMaxLen:       cfg.Digest.SummaryMaxLen,
			SubrequestSoftLimit: cfg.Digest.SubrequestSoftLimit,
			StaleAge:            time.Duration(cfg.Digest.StaleMinutes) * time.Minute,
			RetentionDays:       cfg.Digest.RetentionDays,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupPublisher builds the multi-sink publisher from whichever sinks
// are configured.
func setupPublisher(cfg *config.Config, logger *slog.Logger) (*publish.MultiPublisher, error) {
	var sinks []publish.Sink

	if cfg.Publish.GitHub.Enabled() {
		sink, err := publish.NewGitHubSink(publish.GitHubConfig{
			Token:      cfg.Publish.GitHub.Token,
			Owner:      cfg.Publish.GitHub.Owner,
			Repo:       cfg.Publish.GitHub.Repo,
			Branch:     cfg.Publish.GitHub.Branch,
			PathPrefix: cfg.Publish.GitHub.PathPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize github sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	if cfg.Publish.Telegram.Enabled() {
		sink, err := publish.NewTelegramSink(publish.TelegramConfig{
			BotToken: cfg.Publish.Telegram.BotToken,
			ChatID:   cfg.Publish.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	if cfg.Publish.LocalDir != "" {
		sink, err := publish.NewLocalSink(cfg.Publish.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	publisher, err := publish.NewMultiPublisher(logger.With("component", "publisher"), sinks...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	return publisher, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
