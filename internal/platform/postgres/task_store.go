package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// GetOrCreate implements store.TaskStore.GetOrCreate
// It inserts an init-state task row for the date if none exists, then
// returns the persisted row. The insert uses ON CONFLICT DO NOTHING so
// concurrent callers for the same date all converge on one row.
func (s *PostgresTaskStore) GetOrCreate(ctx context.Context, date string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(date)
	if err != nil {
		log.Warn("task validation failed during get-or-create",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return nil, err
	}

	insert := `
		INSERT INTO tasks (task_date, status, total_articles, completed_articles, failed_articles, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, $4)
		ON CONFLICT (task_date) DO NOTHING
	`
	_, err = s.db.ExecContext(
		ctx,
		insert,
		task.Date,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return nil, MapError(err)
	}

	return s.GetByDate(ctx, date)
}

// GetByDate implements store.TaskStore.GetByDate
// Returns store.ErrTaskNotFound if no task exists for the date.
func (s *PostgresTaskStore) GetByDate(ctx context.Context, date string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT task_date, status, total_articles, completed_articles, failed_articles,
		       created_at, updated_at, published_at
		FROM tasks
		WHERE task_date = $1
	`

	var task domain.Task
	var status string
	var publishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, date).Scan(
		&task.Date,
		&status,
		&task.TotalArticles,
		&task.CompletedArticles,
		&task.FailedArticles,
		&task.CreatedAt,
		&task.UpdatedAt,
		&publishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_date", date))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by date",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return nil, MapError(err)
	}

	task.Status = domain.TaskStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		task.PublishedAt = &t
	}

	return &task, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus
// Returns store.ErrTaskNotFound if no task exists for the date.
func (s *PostgresTaskStore) UpdateStatus(ctx context.Context, date string, status domain.TaskStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE task_date = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), date)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("error", err.Error()),
			slog.String("task_date", date),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return err
	}

	log.Info("task status updated",
		slog.String("task_date", date),
		slog.String("status", string(status)))
	return nil
}

// SetListFetched implements store.TaskStore.SetListFetched
func (s *PostgresTaskStore) SetListFetched(ctx context.Context, date string, totalArticles int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, total_articles = $2, updated_at = $3
		WHERE task_date = $4
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.TaskStatusListFetched,
		totalArticles,
		time.Now().UTC(),
		date,
	)
	if err != nil {
		log.Error("failed to record fetched list",
			slog.String("error", err.Error()),
			slog.String("task_date", date),
			slog.Int("total_articles", totalArticles))
		return MapError(err)
	}

	return CheckRowsAffected(result, "task")
}

// IncrementCounters implements store.TaskStore.IncrementCounters
// The deltas are applied server-side so overlapping invocations cannot
// lose updates to the counters.
func (s *PostgresTaskStore) IncrementCounters(ctx context.Context, date string, completedDelta, failedDelta int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET completed_articles = completed_articles + $1,
		    failed_articles = failed_articles + $2,
		    updated_at = $3
		WHERE task_date = $4
	`

	result, err := s.db.ExecContext(ctx, query, completedDelta, failedDelta, time.Now().UTC(), date)
	if err != nil {
		log.Error("failed to increment task counters",
			slog.String("error", err.Error()),
			slog.String("task_date", date),
			slog.Int("completed_delta", completedDelta),
			slog.Int("failed_delta", failedDelta))
		return MapError(err)
	}

	return CheckRowsAffected(result, "task")
}

// MarkPublished implements store.TaskStore.MarkPublished
func (s *PostgresTaskStore) MarkPublished(ctx context.Context, date string, publishedAt time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, published_at = $2, updated_at = $3
		WHERE task_date = $4
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.TaskStatusPublished,
		publishedAt,
		time.Now().UTC(),
		date,
	)
	if err != nil {
		log.Error("failed to mark task published",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return err
	}

	log.Info("task marked published", slog.String("task_date", date))
	return nil
}

// GetProgress implements store.TaskStore.GetProgress
// It returns the task row plus live pending/processing counts from the
// article relation in one round trip.
func (s *PostgresTaskStore) GetProgress(ctx context.Context, date string) (*store.TaskProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT t.task_date, t.status, t.total_articles, t.completed_articles, t.failed_articles,
		       t.created_at, t.updated_at, t.published_at,
		       COUNT(a.id) FILTER (WHERE a.status = 'pending') AS pending_count,
		       COUNT(a.id) FILTER (WHERE a.status = 'processing') AS processing_count
		FROM tasks t
		LEFT JOIN articles a ON a.task_date = t.task_date
		WHERE t.task_date = $1
		GROUP BY t.task_date, t.status, t.total_articles, t.completed_articles, t.failed_articles,
		         t.created_at, t.updated_at, t.published_at
	`

	var task domain.Task
	var status string
	var publishedAt sql.NullTime
	var progress store.TaskProgress

	err := s.db.QueryRowContext(ctx, query, date).Scan(
		&task.Date,
		&status,
		&task.TotalArticles,
		&task.CompletedArticles,
		&task.FailedArticles,
		&task.CreatedAt,
		&task.UpdatedAt,
		&publishedAt,
		&progress.PendingCount,
		&progress.ProcessingCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task progress",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return nil, MapError(err)
	}

	task.Status = domain.TaskStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		task.PublishedAt = &t
	}
	progress.Task = &task

	return &progress, nil
}

// ArchiveOlderThan implements store.TaskStore.ArchiveOlderThan
// Children are deleted before the parent so referential integrity holds
// at every point inside the transaction.
func (s *PostgresTaskStore) ArchiveOlderThan(ctx context.Context, cutoffDate string) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM batch_audits WHERE task_date < $1`, cutoffDate); err != nil {
		log.Error("failed to archive batch audits",
			slog.String("error", err.Error()),
			slog.String("cutoff_date", cutoffDate))
		return 0, MapError(err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE task_date < $1`, cutoffDate); err != nil {
		log.Error("failed to archive articles",
			slog.String("error", err.Error()),
			slog.String("cutoff_date", cutoffDate))
		return 0, MapError(err)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE task_date < $1`, cutoffDate)
	if err != nil {
		log.Error("failed to archive tasks",
			slog.String("error", err.Error()),
			slog.String("cutoff_date", cutoffDate))
		return 0, MapError(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	log.Info("archived old tasks",
		slog.String("cutoff_date", cutoffDate),
		slog.Int64("deleted", deleted))
	return deleted, nil
}
