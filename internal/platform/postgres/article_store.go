package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

// articleColumns is the canonical select list for article rows.
const articleColumns = `
	id, task_date, story_id, rank, url, title_en, score, published_time,
	status, title_zh, content_summary_zh, comment_summary_zh,
	error_message, retry_count, created_at, updated_at`

// PostgresArticleStore implements the store.ArticleStore interface
// using a PostgreSQL database as the storage backend.
type PostgresArticleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArticleStore creates a new PostgreSQL implementation of the ArticleStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresArticleStore(db store.DBTX, logger *slog.Logger) *PostgresArticleStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresArticleStore{
		db:     db,
		logger: logger.With(slog.String("component", "article_store")),
	}
}

// Ensure PostgresArticleStore implements store.ArticleStore interface
var _ store.ArticleStore = (*PostgresArticleStore)(nil)

// WithTx implements store.ArticleStore.WithTx
func (s *PostgresArticleStore) WithTx(tx *sql.Tx) store.ArticleStore {
	return &PostgresArticleStore{
		db:     tx,
		logger: s.logger,
	}
}

// insertColumnCount is the number of columns written per article row.
const insertColumnCount = 16

// InsertMany implements store.ArticleStore.InsertMany
// All rows go in one multi-row INSERT, so the write is a single
// statement and a single round trip regardless of batch size. Returns
// store.ErrRankExists on (task_date, rank) collisions.
func (s *PostgresArticleStore) InsertMany(ctx context.Context, articles []*domain.Article) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(articles) == 0 {
		return nil
	}

	values := make([]string, len(articles))
	args := make([]any, 0, len(articles)*insertColumnCount)
	for i, article := range articles {
		if err := article.Validate(); err != nil {
			log.Warn("article validation failed during insert",
				slog.String("error", err.Error()),
				slog.String("task_date", article.TaskDate),
				slog.Int("rank", article.Rank))
			return err
		}

		placeholders := make([]string, insertColumnCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*insertColumnCount+j+1)
		}
		values[i] = "(" + strings.Join(placeholders, ", ") + ")"

		args = append(args,
			article.ID,
			article.TaskDate,
			article.StoryID,
			article.Rank,
			article.URL,
			article.TitleEN,
			article.Score,
			article.PublishedTime,
			article.Status,
			article.TitleZH,
			article.ContentSummaryZH,
			article.CommentSummaryZH,
			article.ErrorMessage,
			article.RetryCount,
			article.CreatedAt,
			article.UpdatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO articles (id, task_date, story_id, rank, url, title_en, score, published_time,
		                      status, title_zh, content_summary_zh, comment_summary_zh,
		                      error_message, retry_count, created_at, updated_at)
		VALUES %s
	`, strings.Join(values, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate rank during article insert",
				slog.String("task_date", articles[0].TaskDate))
			return fmt.Errorf("%w: %s: %v",
				store.ErrRankExists, articles[0].TaskDate, err)
		}
		log.Error("failed to insert articles",
			slog.String("error", err.Error()),
			slog.String("task_date", articles[0].TaskDate),
			slog.Int("count", len(articles)))
		return MapError(err)
	}

	log.Info("articles inserted",
		slog.Int("count", len(articles)))
	return nil
}

// GetPending implements store.ArticleStore.GetPending
// SKIP LOCKED keeps overlapping claimers from selecting each other's
// rows: a second transaction skips rows the first already locked and
// moves on to the next pending ranks instead of blocking.
func (s *PostgresArticleStore) GetPending(ctx context.Context, date string, limit int) ([]*domain.Article, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM articles
		WHERE task_date = $1 AND status = $2
		ORDER BY rank ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, articleColumns)

	return s.queryArticles(ctx, query, date, domain.ArticleStatusPending, limit)
}

// MarkProcessing implements store.ArticleStore.MarkProcessing
// Run in the same transaction as the GetPending read that selected the
// ids. The status predicate means a row claimed by a concurrent
// invocation after our read no longer matches; the affected-rows check
// then aborts this claim instead of double-claiming.
func (s *PostgresArticleStore) MarkProcessing(ctx context.Context, ids []uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, domain.ArticleStatusProcessing, time.Now().UTC(), domain.ArticleStatusPending)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE articles
		SET status = $1, updated_at = $2
		WHERE status = $3 AND id IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to mark articles processing",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return MapError(err)
	}

	claimed, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if claimed != int64(len(ids)) {
		log.Warn("claim aborted, rows no longer pending",
			slog.Int64("claimed", claimed),
			slog.Int("requested", len(ids)))
		return fmt.Errorf("%w: claimed %d of %d articles",
			store.ErrClaimLost, claimed, len(ids))
	}

	return nil
}

// updateColumnCount is the number of values carried per update row.
const updateColumnCount = 6

// UpdateBatch implements store.ArticleStore.UpdateBatch
// All rows go in one UPDATE ... FROM (VALUES ...) statement, a single
// round trip per batch. Run within a transaction together with
// TaskStore.IncrementCounters.
func (s *PostgresArticleStore) UpdateBatch(ctx context.Context, updates []store.ArticleUpdate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(updates) == 0 {
		return nil
	}

	values := make([]string, len(updates))
	args := make([]any, 0, len(updates)*updateColumnCount+1)
	args = append(args, time.Now().UTC())
	for i, update := range updates {
		base := i*updateColumnCount + 2
		values[i] = fmt.Sprintf("($%d::uuid, $%d::text, $%d::text, $%d::text, $%d::text, $%d::text)",
			base, base+1, base+2, base+3, base+4, base+5)
		args = append(args,
			update.ID,
			update.Status,
			update.TitleZH,
			update.ContentSummaryZH,
			update.CommentSummaryZH,
			update.ErrorMessage,
		)
	}

	query := fmt.Sprintf(`
		UPDATE articles
		SET status = v.status,
		    title_zh = v.title_zh,
		    content_summary_zh = v.content_summary_zh,
		    comment_summary_zh = v.comment_summary_zh,
		    error_message = v.error_message,
		    updated_at = $1
		FROM (VALUES %s)
		  AS v(id, status, title_zh, content_summary_zh, comment_summary_zh, error_message)
		WHERE articles.id = v.id
	`, strings.Join(values, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update article batch",
			slog.String("error", err.Error()),
			slog.Int("count", len(updates)))
		return MapError(err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if updated != int64(len(updates)) {
		return fmt.Errorf("%w: updated %d of %d articles",
			store.ErrArticleNotFound, updated, len(updates))
	}

	log.Info("article batch updated", slog.Int("count", len(updates)))
	return nil
}

// GetCompleted implements store.ArticleStore.GetCompleted
func (s *PostgresArticleStore) GetCompleted(ctx context.Context, date string) ([]*domain.Article, error) {
	return s.getByStatus(ctx, date, domain.ArticleStatusCompleted)
}

// GetFailed implements store.ArticleStore.GetFailed
func (s *PostgresArticleStore) GetFailed(ctx context.Context, date string) ([]*domain.Article, error) {
	return s.getByStatus(ctx, date, domain.ArticleStatusFailed)
}

// getByStatus retrieves all articles for the date with the given status,
// ordered by ascending rank.
func (s *PostgresArticleStore) getByStatus(
	ctx context.Context,
	date string,
	status domain.ArticleStatus,
) ([]*domain.Article, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM articles
		WHERE task_date = $1 AND status = $2
		ORDER BY rank ASC
	`, articleColumns)

	return s.queryArticles(ctx, query, date, status)
}

// ResetFailed implements store.ArticleStore.ResetFailed
// retry_count advances here so the ceiling counts retries actually granted.
func (s *PostgresArticleStore) ResetFailed(ctx context.Context, date string, maxRetries int) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE articles
		SET status = $1,
		    error_message = '',
		    retry_count = retry_count + 1,
		    updated_at = $2
		WHERE task_date = $3 AND status = $4 AND retry_count < $5
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.ArticleStatusPending,
		time.Now().UTC(),
		date,
		domain.ArticleStatusFailed,
		maxRetries,
	)
	if err != nil {
		log.Error("failed to reset failed articles",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return 0, MapError(err)
	}

	reset, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	log.Info("failed articles reset to pending",
		slog.String("task_date", date),
		slog.Int64("count", reset))
	return reset, nil
}

// ResetStaleProcessing implements store.ArticleStore.ResetStaleProcessing
func (s *PostgresArticleStore) ResetStaleProcessing(
	ctx context.Context,
	date string,
	olderThan time.Duration,
) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE articles
		SET status = $1, updated_at = $2
		WHERE task_date = $3 AND status = $4 AND updated_at < $5
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.ArticleStatusPending,
		time.Now().UTC(),
		date,
		domain.ArticleStatusProcessing,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		log.Error("failed to reset stale processing articles",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return 0, MapError(err)
	}

	reset, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	if reset > 0 {
		log.Warn("stale processing articles reset to pending",
			slog.String("task_date", date),
			slog.Int64("count", reset))
	}
	return reset, nil
}

// queryArticles runs a select over the canonical column list and scans
// the result rows into domain articles.
func (s *PostgresArticleStore) queryArticles(ctx context.Context, query string, args ...any) ([]*domain.Article, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query articles", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var articles []*domain.Article
	for rows.Next() {
		var article domain.Article
		var status string

		err := rows.Scan(
			&article.ID,
			&article.TaskDate,
			&article.StoryID,
			&article.Rank,
			&article.URL,
			&article.TitleEN,
			&article.Score,
			&article.PublishedTime,
			&status,
			&article.TitleZH,
			&article.ContentSummaryZH,
			&article.CommentSummaryZH,
			&article.ErrorMessage,
			&article.RetryCount,
			&article.CreatedAt,
			&article.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to scan article row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		article.Status = domain.ArticleStatus(status)
		articles = append(articles, &article)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if articles == nil {
		articles = []*domain.Article{}
	}

	return articles, nil
}
