package domain

import (
	"errors"
	"time"
)

// TaskStatus represents the lifecycle state of a daily digest task
type TaskStatus string

// Possible task status values. Archived is terminal and is represented
// by deleting the task row rather than storing a status.
const (
	TaskStatusInit        TaskStatus = "init"
	TaskStatusListFetched TaskStatus = "list_fetched"
	TaskStatusProcessing  TaskStatus = "processing"
	TaskStatusAggregating TaskStatus = "aggregating"
	TaskStatusPublished   TaskStatus = "published"
)

// Common validation errors for Task
var (
	ErrInvalidTaskDate     = errors.New("task date must be in YYYY-MM-DD format")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidTaskCounters = errors.New("completed plus failed articles cannot exceed total articles")
)

// DateLayout is the canonical format for a task's natural key.
const DateLayout = "2006-01-02"

// Task represents one calendar day's enrichment-and-publish job.
// The date is the natural key; counters are maintained by the store
// through additive increments, never client-side read-modify-write.
type Task struct {
	Date              string     `json:"date"`
	Status            TaskStatus `json:"status"`
	TotalArticles     int        `json:"total_articles"`
	CompletedArticles int        `json:"completed_articles"`
	FailedArticles    int        `json:"failed_articles"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
}

// NewTask creates a new Task in the init state for the given date.
// Returns an error if validation fails.
func NewTask(date string) (*Task, error) {
	task := &Task{
		Date:      date,
		Status:    TaskStatusInit,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidTaskDate
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.CompletedArticles+t.FailedArticles > t.TotalArticles {
		return ErrInvalidTaskCounters
	}

	return nil
}

// ReadyToPublish reports whether every enrolled article has reached a
// terminal state, i.e. completed + failed equals the enrolled total.
func (t *Task) ReadyToPublish() bool {
	return t.TotalArticles > 0 &&
		t.CompletedArticles+t.FailedArticles == t.TotalArticles
}

// CanTransitionTo reports whether moving from the task's current status
// to the given status is a legal state machine transition.
func (t *Task) CanTransitionTo(next TaskStatus) bool {
	switch t.Status {
	case TaskStatusInit:
		return next == TaskStatusListFetched
	case TaskStatusListFetched:
		return next == TaskStatusProcessing || next == TaskStatusAggregating
	case TaskStatusProcessing:
		return next == TaskStatusAggregating
	case TaskStatusAggregating:
		// Retrying failed articles reopens the processing phase.
		return next == TaskStatusPublished || next == TaskStatusProcessing
	case TaskStatusPublished:
		return false
	default:
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusInit, TaskStatusListFetched, TaskStatusProcessing,
		TaskStatusAggregating, TaskStatusPublished:
		return true
	default:
		return false
	}
}
