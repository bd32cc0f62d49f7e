package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/task"
)

// DigestService is the executor surface the handlers depend on.
type DigestService interface {
	InitializeTask(ctx context.Context, date string) (*domain.Task, error)
	ProcessNextBatch(ctx context.Context, date string, batchSize int) (*task.BatchResult, error)
	AggregateResults(ctx context.Context, date string) (string, error)
	PublishResults(ctx context.Context, date string, document string) error
	RetryFailedArticles(ctx context.Context, date string, maxRetries int) (int64, error)
	RecoverStaleArticles(ctx context.Context, date string) (int64, error)
	ArchiveOldTasks(ctx context.Context, retentionDays int) (int64, error)
	Progress(ctx context.Context, date string) (*store.TaskProgress, error)
}

// TaskHandler handles digest task HTTP requests.
type TaskHandler struct {
	service DigestService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service DigestService) *TaskHandler {
	return &TaskHandler{service: service}
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	Date              string     `json:"date"`
	Status            string     `json:"status"`
	TotalArticles     int        `json:"total_articles"`
	CompletedArticles int        `json:"completed_articles"`
	FailedArticles    int        `json:"failed_articles"`
	PendingCount      int        `json:"pending_count,omitempty"`
	ProcessingCount   int        `json:"processing_count,omitempty"`
	State             string     `json:"state,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
}

// ProcessRequest represents the request body for processing a batch.
type ProcessRequest struct {
	BatchSize int `json:"batch_size"`
}

// RetryRequest represents the request body for retrying failed articles.
type RetryRequest struct {
	MaxRetries int `json:"max_retries"`
}

// ArchiveRequest represents the request body for archiving old tasks.
type ArchiveRequest struct {
	RetentionDays int `json:"retention_days"`
}

// Initialize handles POST /api/tasks/{date}/initialize requests.
func (h *TaskHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	date, ok := h.taskDate(w, r)
	if !ok {
		return
	}

	created, err := h.service.InitializeTask(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to initialize task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(created))
}

// Process handles POST /api/tasks/{date}/process requests.
func (h *TaskHandler) Process(w http.ResponseWriter, r *http.Request) {
	date, ok := h.taskDate(w, r)
	if !ok {
		return
	}

	var req ProcessRequest
	if !h.decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.service.ProcessNextBatch(r.Context(), date, req.BatchSize)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to process batch")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Publish handles POST /api/tasks/{date}/publish requests. Aggregation
// and delivery run as one step: the digest is rendered from durable
// state and handed to the sinks.
func (h *TaskHandler) Publish(w http.ResponseWriter, r *http.Request) {
	date, ok := h.taskDate(w, r)
	if !ok {
		return
	}

	document, err := h.service.AggregateResults(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to aggregate results")
		return
	}

	if err := h.service.PublishResults(r.Context(), date, document); err != nil {
		h.respondServiceError(w, r, err, "Failed to publish digest")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"date":   date,
		"status": string(domain.TaskStatusPublished),
	})
}

// Retry handles POST /api/tasks/{date}/retry requests.
func (h *TaskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	date, ok := h.taskDate(w, r)
	if !ok {
		return
	}

	var req RetryRequest
	if !h.decodeOptionalBody(w, r, &req) {
		return
	}

	reset, err := h.service.RetryFailedArticles(r.Context(), date, req.MaxRetries)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retry failed articles")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int64{"reset": reset})
}

// Recover handles POST /api/tasks/{date}/recover requests.
func (h *TaskHandler) Recover(w http.ResponseWriter, r *http.Request) {
	date, ok := h.taskDate(w, r)
	if !ok {
		return
	}

	reset, err := h.service.RecoverStaleArticles(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to recover stale articles")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int64{"reset": reset})
}

// Progress handles GET /api/tasks/{date}/progress requests.
func (h *TaskHandler) Progress(w http.ResponseWriter, r *http.Request) {
	date, ok := h.taskDate(w, r)
	if !ok {
		return
	}

	progress, err := h.service.Progress(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to read task progress")
		return
	}

	response := taskToResponse(progress.Task)
	response.PendingCount = progress.PendingCount
	response.ProcessingCount = progress.ProcessingCount
	response.State = deriveState(progress)
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// Archive handles POST /api/maintenance/archive requests.
func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if !h.decodeOptionalBody(w, r, &req) {
		return
	}

	deleted, err := h.service.ArchiveOldTasks(r.Context(), req.RetentionDays)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to archive old tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int64{"deleted": deleted})
}

// taskDate extracts and validates the {date} path parameter.
func (h *TaskHandler) taskDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"Date must be in YYYY-MM-DD format", err)
		return "", false
	}
	return date, true
}

// decodeOptionalBody decodes a JSON body into target when one is
// present. An empty body leaves the target zero-valued, letting the
// service apply its configured defaults.
func (h *TaskHandler) decodeOptionalBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	return true
}

// respondServiceError maps service errors to HTTP status codes.
func (h *TaskHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found", err)
	case errors.Is(err, task.ErrTaskNotInitialized):
		shared.RespondWithError(w, r, http.StatusConflict,
			"Task has not fetched its story list yet", err)
	case errors.Is(err, task.ErrTaskIncomplete):
		shared.RespondWithError(w, r, http.StatusConflict,
			"Task still has articles being processed", err)
	case errors.Is(err, task.ErrNoCandidates):
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity,
			"No candidate stories found for this date", err)
	case errors.Is(err, task.ErrNoCompletedArticles):
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity,
			"No completed articles to publish", err)
	case errors.Is(err, domain.ErrInvalidTaskDate):
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"Date must be in YYYY-MM-DD format", err)
	default:
		shared.RespondWithError(w, r, http.StatusInternalServerError, fallback, err)
	}
}

// deriveState condenses the task row and live counts into an
// operator-facing label: whether the day is still being enriched, has
// unfinished failures worth retrying, or is ready to publish.
func deriveState(progress *store.TaskProgress) string {
	t := progress.Task
	switch {
	case t.Status == domain.TaskStatusPublished:
		return "published"
	case t.Status == domain.TaskStatusInit:
		return "uninitialized"
	case progress.PendingCount > 0 || progress.ProcessingCount > 0:
		return "enriching"
	case t.ReadyToPublish() && t.FailedArticles > 0:
		return "ready_with_failures"
	case t.ReadyToPublish():
		return "ready_to_publish"
	default:
		return "enriching"
	}
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		Date:              t.Date,
		Status:            string(t.Status),
		TotalArticles:     t.TotalArticles,
		CompletedArticles: t.CompletedArticles,
		FailedArticles:    t.FailedArticles,
		PublishedAt:       t.PublishedAt,
	}
}
