package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/digest-api/internal/domain"
)

// ArticleUpdate carries the per-article outcome of one batch: the new
// status plus the enrichment fields derived during the batch.
type ArticleUpdate struct {
	ID               uuid.UUID
	Status           domain.ArticleStatus
	TitleZH          string
	ContentSummaryZH string
	CommentSummaryZH string
	ErrorMessage     string
}

// ArticleStore defines the interface for article data persistence.
type ArticleStore interface {
	// InsertMany saves all articles in a single transaction, all-or-nothing,
	// so a task's total_articles never disagrees with the persisted row count.
	// Returns ErrRankExists if any (task_date, rank) pair already exists.
	//
	// IMPORTANT: run this through WithTx inside RunInTransaction together
	// with TaskStore.SetListFetched.
	InsertMany(ctx context.Context, articles []*domain.Article) error

	// GetPending retrieves up to limit pending articles for the date,
	// ordered by ascending rank, locking the returned rows against
	// concurrent claimers for the duration of the transaction. The
	// deterministic order means a re-invocation after a crash resumes
	// from the lowest unfinished rank.
	GetPending(ctx context.Context, date string, limit int) ([]*domain.Article, error)

	// MarkProcessing claims the given articles by transitioning them
	// from pending to processing. Run in the same transaction as the
	// GetPending read. Returns ErrClaimLost if any of the rows is no
	// longer pending, so an overlapping invocation that read the same
	// rows cannot complete a second claim.
	MarkProcessing(ctx context.Context, ids []uuid.UUID) error

	// UpdateBatch applies all per-article updates in a single transaction.
	//
	// IMPORTANT: run this through WithTx inside RunInTransaction together
	// with TaskStore.IncrementCounters.
	UpdateBatch(ctx context.Context, updates []ArticleUpdate) error

	// GetCompleted retrieves all completed articles for the date ordered by
	// ascending rank, for aggregation.
	GetCompleted(ctx context.Context, date string) ([]*domain.Article, error)

	// GetFailed retrieves all failed articles for the date ordered by
	// ascending rank, for diagnostics and retry decisions.
	GetFailed(ctx context.Context, date string) ([]*domain.Article, error)

	// ResetFailed bulk-resets failed articles with retry_count < maxRetries
	// back to pending, incrementing retry_count as it does. Articles exactly
	// at maxRetries remain permanently failed. Returns the number reset.
	ResetFailed(ctx context.Context, date string, maxRetries int) (int64, error)

	// ResetStaleProcessing resets processing articles whose last update is
	// older than the given age back to pending, recovering rows left
	// claimed by a crashed or timed-out invocation. Returns the number reset.
	ResetStaleProcessing(ctx context.Context, date string, olderThan time.Duration) (int64, error)

	// WithTx returns a new ArticleStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ArticleStore
}
