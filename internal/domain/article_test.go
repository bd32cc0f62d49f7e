package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
)

func TestNewArticle(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	t.Run("creates pending article", func(t *testing.T) {
		t.Parallel()

		article, err := domain.NewArticle("2025-06-15", 1, "44001234", "https://example.com/post", "Show HN: Example", 321, published)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, article.ID)
		assert.Equal(t, domain.ArticleStatusPending, article.Status)
		assert.Equal(t, 1, article.Rank)
		assert.Zero(t, article.RetryCount)
		assert.Empty(t, article.TitleZH)
	})

	t.Run("allows empty URL for self posts", func(t *testing.T) {
		t.Parallel()

		article, err := domain.NewArticle("2025-06-15", 2, "44005678", "", "Ask HN: Example", 10, published)
		require.NoError(t, err)
		assert.Empty(t, article.URL)
	})

	tests := []struct {
		name    string
		date    string
		rank    int
		storyID string
		title   string
		wantErr error
	}{
		{name: "bad date", date: "15/06/2025", rank: 1, storyID: "1", title: "x", wantErr: domain.ErrInvalidTaskDate},
		{name: "zero rank", date: "2025-06-15", rank: 0, storyID: "1", title: "x", wantErr: domain.ErrInvalidArticleRank},
		{name: "missing story id", date: "2025-06-15", rank: 1, storyID: "", title: "x", wantErr: domain.ErrEmptyArticleStoryID},
		{name: "missing title", date: "2025-06-15", rank: 1, storyID: "1", title: "", wantErr: domain.ErrEmptyArticleTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := domain.NewArticle(tt.date, tt.rank, tt.storyID, "", tt.title, 0, published)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestArticleCanRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     domain.ArticleStatus
		retryCount int
		maxRetries int
		want       bool
	}{
		{name: "failed below ceiling", status: domain.ArticleStatusFailed, retryCount: 1, maxRetries: 3, want: true},
		{name: "failed at ceiling", status: domain.ArticleStatusFailed, retryCount: 3, maxRetries: 3, want: false},
		{name: "completed never retries", status: domain.ArticleStatusCompleted, retryCount: 0, maxRetries: 3, want: false},
		{name: "pending never retries", status: domain.ArticleStatusPending, retryCount: 0, maxRetries: 3, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			article := &domain.Article{Status: tt.status, RetryCount: tt.retryCount}
			assert.Equal(t, tt.want, article.CanRetry(tt.maxRetries))
		})
	}
}

func TestBatchAuditValidate(t *testing.T) {
	t.Parallel()

	valid := func() *domain.BatchAudit {
		return &domain.BatchAudit{
			TaskDate:        "2025-06-15",
			BatchIndex:      1,
			ArticleCount:    10,
			SubrequestCount: 23,
			Status:          domain.BatchStatusSuccess,
		}
	}

	t.Run("valid audit", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects zero batch index", func(t *testing.T) {
		t.Parallel()

		audit := valid()
		audit.BatchIndex = 0
		assert.ErrorIs(t, audit.Validate(), domain.ErrInvalidBatchIndex)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()

		audit := valid()
		audit.Status = "retrying"
		assert.ErrorIs(t, audit.Validate(), domain.ErrInvalidBatchStatus)
	})

	t.Run("rejects bad date", func(t *testing.T) {
		t.Parallel()

		audit := valid()
		audit.TaskDate = "not-a-date"
		assert.ErrorIs(t, audit.Validate(), domain.ErrInvalidTaskDate)
	})
}
