package postgres_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/testdb"
)

const testDate = "2025-06-15"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedArticles enrolls n pending articles under the task for testDate.
func seedArticles(t *testing.T, tx *sql.Tx, n int) []*domain.Article {
	t.Helper()
	ctx := context.Background()

	tasks := postgres.NewPostgresTaskStore(tx, discardLogger())
	articles := postgres.NewPostgresArticleStore(tx, discardLogger())

	_, err := tasks.GetOrCreate(ctx, testDate)
	require.NoError(t, err)

	seeded := make([]*domain.Article, 0, n)
	for i := 1; i <= n; i++ {
		article, err := domain.NewArticle(
			testDate, i, "story", "https://example.com", "Title", 100,
			time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		)
		require.NoError(t, err)
		seeded = append(seeded, article)
	}
	require.NoError(t, articles.InsertMany(ctx, seeded))
	require.NoError(t, tasks.SetListFetched(ctx, testDate, n))
	return seeded
}

func TestTaskStoreIntegration(t *testing.T) {
	db := testdb.GetTestDB(t)
	ctx := context.Background()

	t.Run("get or create is idempotent", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())

			first, err := tasks.GetOrCreate(ctx, testDate)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusInit, first.Status)

			second, err := tasks.GetOrCreate(ctx, testDate)
			require.NoError(t, err)
			assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
		})
	})

	t.Run("unknown date returns not found", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())

			_, err := tasks.GetByDate(ctx, "1999-01-01")
			assert.ErrorIs(t, err, store.ErrTaskNotFound)
		})
	})

	t.Run("counters increment server side", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seedArticles(t, tx, 5)
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())

			require.NoError(t, tasks.IncrementCounters(ctx, testDate, 2, 1))
			require.NoError(t, tasks.IncrementCounters(ctx, testDate, 1, 0))

			task, err := tasks.GetByDate(ctx, testDate)
			require.NoError(t, err)
			assert.Equal(t, 3, task.CompletedArticles)
			assert.Equal(t, 1, task.FailedArticles)
		})
	})

	t.Run("check constraint rejects counter overflow", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seedArticles(t, tx, 2)
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())

			err := tasks.IncrementCounters(ctx, testDate, 2, 1)
			assert.ErrorIs(t, err, store.ErrInvalidEntity)
		})
	})

	t.Run("progress reports live article counts", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seeded := seedArticles(t, tx, 3)
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			require.NoError(t, articles.MarkProcessing(ctx, []uuid.UUID{seeded[0].ID}))

			progress, err := tasks.GetProgress(ctx, testDate)
			require.NoError(t, err)
			assert.Equal(t, 2, progress.PendingCount)
			assert.Equal(t, 1, progress.ProcessingCount)
		})
	})

	t.Run("mark published stamps the timestamp", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seedArticles(t, tx, 1)
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())

			publishedAt := time.Now().UTC()
			require.NoError(t, tasks.MarkPublished(ctx, testDate, publishedAt))

			task, err := tasks.GetByDate(ctx, testDate)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusPublished, task.Status)
			require.NotNil(t, task.PublishedAt)
		})
	})

	t.Run("archive deletes task with children", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seedArticles(t, tx, 2)
			tasks := postgres.NewPostgresTaskStore(tx, discardLogger())

			deleted, err := tasks.ArchiveOlderThan(ctx, "2026-01-01")
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			_, err = tasks.GetByDate(ctx, testDate)
			assert.ErrorIs(t, err, store.ErrTaskNotFound)
		})
	})
}

func TestArticleStoreIntegration(t *testing.T) {
	db := testdb.GetTestDB(t)
	ctx := context.Background()

	t.Run("duplicate rank is rejected", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seedArticles(t, tx, 1)
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			dup, err := domain.NewArticle(
				testDate, 1, "other-story", "", "Other", 10,
				time.Now().UTC(),
			)
			require.NoError(t, err)

			err = articles.InsertMany(ctx, []*domain.Article{dup})
			assert.ErrorIs(t, err, store.ErrRankExists)
		})
	})

	t.Run("pending articles come back in rank order", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seedArticles(t, tx, 4)
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			pending, err := articles.GetPending(ctx, testDate, 2)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, 1, pending[0].Rank)
			assert.Equal(t, 2, pending[1].Rank)
		})
	})

	t.Run("claim refuses rows another invocation took", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seeded := seedArticles(t, tx, 2)
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			ids := []uuid.UUID{seeded[0].ID, seeded[1].ID}
			require.NoError(t, articles.MarkProcessing(ctx, ids))

			err := articles.MarkProcessing(ctx, ids)
			assert.ErrorIs(t, err, store.ErrClaimLost)
		})
	})

	t.Run("batch update rejects unknown articles", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seeded := seedArticles(t, tx, 1)
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			err := articles.UpdateBatch(ctx, []store.ArticleUpdate{
				{ID: seeded[0].ID, Status: domain.ArticleStatusCompleted},
				{ID: uuid.New(), Status: domain.ArticleStatusCompleted},
			})
			assert.ErrorIs(t, err, store.ErrArticleNotFound)
		})
	})

	t.Run("batch update persists enrichment fields", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seeded := seedArticles(t, tx, 2)
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			require.NoError(t, articles.UpdateBatch(ctx, []store.ArticleUpdate{
				{
					ID:               seeded[0].ID,
					Status:           domain.ArticleStatusCompleted,
					TitleZH:          "译文",
					ContentSummaryZH: "内容摘要",
					CommentSummaryZH: "评论摘要",
				},
				{
					ID:           seeded[1].ID,
					Status:       domain.ArticleStatusFailed,
					ErrorMessage: "extraction failed",
				},
			}))

			completed, err := articles.GetCompleted(ctx, testDate)
			require.NoError(t, err)
			require.Len(t, completed, 1)
			assert.Equal(t, "译文", completed[0].TitleZH)

			failed, err := articles.GetFailed(ctx, testDate)
			require.NoError(t, err)
			require.Len(t, failed, 1)
			assert.Equal(t, "extraction failed", failed[0].ErrorMessage)
		})
	})

	t.Run("reset failed respects the retry ceiling", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			seeded := seedArticles(t, tx, 1)
			articles := postgres.NewPostgresArticleStore(tx, discardLogger())

			fail := func() {
				pending, err := articles.GetPending(ctx, testDate, 1)
				require.NoError(t, err)
				require.Len(t, pending, 1)
				require.NoError(t, articles.UpdateBatch(ctx, []store.ArticleUpdate{
					{ID: seeded[0].ID, Status: domain.ArticleStatusFailed, ErrorMessage: "boom"},
				}))
			}

			fail()
			reset, err := articles.ResetFailed(ctx, testDate, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(1), reset)

			fail()
			reset, err = articles.ResetFailed(ctx, testDate, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(1), reset)

			fail()
			// retry_count is now 2, at the ceiling.
			reset, err = articles.ResetFailed(ctx, testDate, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(0), reset)
		})
	})
}

func TestBatchAuditStoreIntegration(t *testing.T) {
	db := testdb.GetTestDB(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		seedArticles(t, tx, 1)
		batches := postgres.NewPostgresBatchAuditStore(tx, discardLogger())

		index, err := batches.NextIndex(ctx, testDate)
		require.NoError(t, err)
		assert.Equal(t, 1, index)

		require.NoError(t, batches.Insert(ctx, &domain.BatchAudit{
			TaskDate:        testDate,
			BatchIndex:      index,
			ArticleCount:    1,
			SubrequestCount: 5,
			DurationMS:      1200,
			Status:          domain.BatchStatusSuccess,
		}))

		index, err = batches.NextIndex(ctx, testDate)
		require.NoError(t, err)
		assert.Equal(t, 2, index)

		audits, err := batches.ListByDate(ctx, testDate)
		require.NoError(t, err)
		require.Len(t, audits, 1)
		assert.Equal(t, 5, audits[0].SubrequestCount)
	})
}
