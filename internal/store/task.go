package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
)

// TaskProgress is a derived read of a task row plus live article counts.
// PendingCount and ProcessingCount come from the article relation, so a
// poller can distinguish "still working" from "stuck" and "needs retry".
type TaskProgress struct {
	Task            *domain.Task
	PendingCount    int
	ProcessingCount int
}

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// GetOrCreate fetches the task for the given date, inserting a fresh
	// init-state row if none exists. Idempotent: concurrent callers for the
	// same date all observe the same row.
	GetOrCreate(ctx context.Context, date string) (*domain.Task, error)

	// GetByDate retrieves the task for the given date.
	// Returns ErrTaskNotFound if no task exists.
	GetByDate(ctx context.Context, date string) (*domain.Task, error)

	// UpdateStatus performs a single-row status update.
	// Returns ErrTaskNotFound if no task exists for the date.
	UpdateStatus(ctx context.Context, date string, status domain.TaskStatus) error

	// SetListFetched records the enrolled article total and transitions the
	// task to list_fetched in a single-row update.
	SetListFetched(ctx context.Context, date string, totalArticles int) error

	// IncrementCounters adds the given deltas to the task's completed and
	// failed counters server-side. Never a client read-modify-write, so
	// overlapping invocations cannot lose updates.
	IncrementCounters(ctx context.Context, date string, completedDelta, failedDelta int) error

	// MarkPublished transitions the task to published and stamps published_at.
	MarkPublished(ctx context.Context, date string, publishedAt time.Time) error

	// GetProgress returns the task row together with live pending and
	// processing article counts.
	GetProgress(ctx context.Context, date string) (*TaskProgress, error)

	// ArchiveOlderThan deletes tasks whose date is strictly before the
	// cutoff date, children (articles, batch audits) before the parent.
	// Returns the number of tasks deleted.
	//
	// IMPORTANT: run this through WithTx inside RunInTransaction so the
	// child and parent deletes are atomic.
	ArchiveOlderThan(ctx context.Context, cutoffDate string) (int64, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
