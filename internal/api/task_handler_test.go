package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/task"
)

// mockDigestService implements DigestService with overridable Fn fields.
type mockDigestService struct {
	InitializeTaskFn       func(ctx context.Context, date string) (*domain.Task, error)
	ProcessNextBatchFn     func(ctx context.Context, date string, batchSize int) (*task.BatchResult, error)
	AggregateResultsFn     func(ctx context.Context, date string) (string, error)
	PublishResultsFn       func(ctx context.Context, date string, document string) error
	RetryFailedArticlesFn  func(ctx context.Context, date string, maxRetries int) (int64, error)
	RecoverStaleArticlesFn func(ctx context.Context, date string) (int64, error)
	ArchiveOldTasksFn      func(ctx context.Context, retentionDays int) (int64, error)
	ProgressFn             func(ctx context.Context, date string) (*store.TaskProgress, error)
}

func (m *mockDigestService) InitializeTask(ctx context.Context, date string) (*domain.Task, error) {
	return m.InitializeTaskFn(ctx, date)
}

func (m *mockDigestService) ProcessNextBatch(ctx context.Context, date string, batchSize int) (*task.BatchResult, error) {
	return m.ProcessNextBatchFn(ctx, date, batchSize)
}

func (m *mockDigestService) AggregateResults(ctx context.Context, date string) (string, error) {
	return m.AggregateResultsFn(ctx, date)
}

func (m *mockDigestService) PublishResults(ctx context.Context, date string, document string) error {
	return m.PublishResultsFn(ctx, date, document)
}

func (m *mockDigestService) RetryFailedArticles(ctx context.Context, date string, maxRetries int) (int64, error) {
	return m.RetryFailedArticlesFn(ctx, date, maxRetries)
}

func (m *mockDigestService) RecoverStaleArticles(ctx context.Context, date string) (int64, error) {
	return m.RecoverStaleArticlesFn(ctx, date)
}

func (m *mockDigestService) ArchiveOldTasks(ctx context.Context, retentionDays int) (int64, error) {
	return m.ArchiveOldTasksFn(ctx, retentionDays)
}

func (m *mockDigestService) Progress(ctx context.Context, date string) (*store.TaskProgress, error) {
	return m.ProgressFn(ctx, date)
}

// newTestRouter mounts the handler under the real route layout so URL
// parameters resolve the same way as in production.
func newTestRouter(service DigestService) http.Handler {
	handler := NewTaskHandler(service)

	r := chi.NewRouter()
	r.Route("/api/tasks/{date}", func(r chi.Router) {
		r.Post("/initialize", handler.Initialize)
		r.Post("/process", handler.Process)
		r.Post("/publish", handler.Publish)
		r.Post("/retry", handler.Retry)
		r.Post("/recover", handler.Recover)
		r.Get("/progress", handler.Progress)
	})
	r.Post("/api/maintenance/archive", handler.Archive)
	return r
}

func TestInitializeEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			InitializeTaskFn: func(ctx context.Context, date string) (*domain.Task, error) {
				assert.Equal(t, "2025-06-15", date)
				return &domain.Task{
					Date:          date,
					Status:        domain.TaskStatusListFetched,
					TotalArticles: 30,
				}, nil
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/initialize", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "list_fetched", resp.Status)
		assert.Equal(t, 30, resp.TotalArticles)
	})

	t.Run("malformed date is rejected before the service", func(t *testing.T) {
		t.Parallel()

		called := false
		service := &mockDigestService{
			InitializeTaskFn: func(ctx context.Context, date string) (*domain.Task, error) {
				called = true
				return nil, nil
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/June-15/initialize", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, called)
	})

	t.Run("no candidates maps to 422", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			InitializeTaskFn: func(ctx context.Context, date string) (*domain.Task, error) {
				return nil, task.ErrNoCandidates
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/initialize", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestProcessEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("passes batch size from body", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			ProcessNextBatchFn: func(ctx context.Context, date string, batchSize int) (*task.BatchResult, error) {
				assert.Equal(t, 2, batchSize)
				return &task.BatchResult{Processed: 2, Pending: 3}, nil
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/process",
			strings.NewReader(`{"batch_size":2}`))
		newTestRouter(service).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var result task.BatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 3, result.Pending)
	})

	t.Run("empty body means default batch size", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			ProcessNextBatchFn: func(ctx context.Context, date string, batchSize int) (*task.BatchResult, error) {
				assert.Zero(t, batchSize)
				return &task.BatchResult{}, nil
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/process", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("uninitialized task maps to 409", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			ProcessNextBatchFn: func(ctx context.Context, date string, batchSize int) (*task.BatchResult, error) {
				return nil, task.ErrTaskNotInitialized
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/process", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown task maps to 404", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			ProcessNextBatchFn: func(ctx context.Context, date string, batchSize int) (*task.BatchResult, error) {
				return nil, store.ErrTaskNotFound
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/process", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPublishEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("aggregates then publishes", func(t *testing.T) {
		t.Parallel()

		var published string
		service := &mockDigestService{
			AggregateResultsFn: func(ctx context.Context, date string) (string, error) {
				return "# digest", nil
			},
			PublishResultsFn: func(ctx context.Context, date string, document string) error {
				published = document
				return nil
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/publish", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "# digest", published)
	})

	t.Run("incomplete task maps to 409", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			AggregateResultsFn: func(ctx context.Context, date string) (string, error) {
				return "# digest", nil
			},
			PublishResultsFn: func(ctx context.Context, date string, document string) error {
				return task.ErrTaskIncomplete
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/publish", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("sink failure maps to 500", func(t *testing.T) {
		t.Parallel()

		service := &mockDigestService{
			AggregateResultsFn: func(ctx context.Context, date string) (string, error) {
				return "# digest", nil
			},
			PublishResultsFn: func(ctx context.Context, date string, document string) error {
				return errors.New("all sinks failed")
			},
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/publish", nil)
		newTestRouter(service).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Failed to publish digest", resp.Error, "raw error never leaks to the client")
	})
}

func TestRetryEndpoint(t *testing.T) {
	t.Parallel()

	service := &mockDigestService{
		RetryFailedArticlesFn: func(ctx context.Context, date string, maxRetries int) (int64, error) {
			assert.Equal(t, 5, maxRetries)
			return 3, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/2025-06-15/retry",
		strings.NewReader(`{"max_retries":5}`))
	newTestRouter(service).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp["reset"])
}

func TestProgressEndpoint(t *testing.T) {
	t.Parallel()

	service := &mockDigestService{
		ProgressFn: func(ctx context.Context, date string) (*store.TaskProgress, error) {
			return &store.TaskProgress{
				Task: &domain.Task{
					Date:              date,
					Status:            domain.TaskStatusProcessing,
					TotalArticles:     5,
					CompletedArticles: 2,
				},
				PendingCount:    2,
				ProcessingCount: 1,
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/2025-06-15/progress", nil)
	newTestRouter(service).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, 2, resp.PendingCount)
	assert.Equal(t, 1, resp.ProcessingCount)
	assert.Equal(t, "enriching", resp.State)
}

func TestDeriveState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		progress *store.TaskProgress
		want     string
	}{
		{
			name: "published task",
			progress: &store.TaskProgress{
				Task: &domain.Task{Status: domain.TaskStatusPublished, TotalArticles: 5, CompletedArticles: 5},
			},
			want: "published",
		},
		{
			name: "uninitialized task",
			progress: &store.TaskProgress{
				Task: &domain.Task{Status: domain.TaskStatusInit},
			},
			want: "uninitialized",
		},
		{
			name: "articles outstanding",
			progress: &store.TaskProgress{
				Task:         &domain.Task{Status: domain.TaskStatusProcessing, TotalArticles: 5, CompletedArticles: 2},
				PendingCount: 3,
			},
			want: "enriching",
		},
		{
			name: "all terminal with failures",
			progress: &store.TaskProgress{
				Task: &domain.Task{Status: domain.TaskStatusAggregating, TotalArticles: 5, CompletedArticles: 3, FailedArticles: 2},
			},
			want: "ready_with_failures",
		},
		{
			name: "all completed",
			progress: &store.TaskProgress{
				Task: &domain.Task{Status: domain.TaskStatusAggregating, TotalArticles: 5, CompletedArticles: 5},
			},
			want: "ready_to_publish",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, deriveState(tt.progress))
		})
	}
}

func TestArchiveEndpoint(t *testing.T) {
	t.Parallel()

	service := &mockDigestService{
		ArchiveOldTasksFn: func(ctx context.Context, retentionDays int) (int64, error) {
			assert.Equal(t, 60, retentionDays)
			return 12, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/archive",
		strings.NewReader(`{"retention_days":60}`))
	newTestRouter(service).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(12), resp["deleted"])
}
