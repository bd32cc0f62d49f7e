package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ArticleStatus represents the enrichment state of an article
type ArticleStatus string

// Possible article status values
const (
	ArticleStatusPending    ArticleStatus = "pending"
	ArticleStatusProcessing ArticleStatus = "processing"
	ArticleStatusCompleted  ArticleStatus = "completed"
	ArticleStatusFailed     ArticleStatus = "failed"
)

// Common validation errors for Article
var (
	ErrEmptyArticleID       = errors.New("article ID cannot be empty")
	ErrEmptyArticleStoryID  = errors.New("article story ID cannot be empty")
	ErrInvalidArticleRank   = errors.New("article rank must be positive")
	ErrEmptyArticleTitle    = errors.New("article title cannot be empty")
	ErrInvalidArticleStatus = errors.New("invalid article status")
)

// Article represents one candidate story enrolled in a daily task.
// Ranks within a task form a dense permutation of 1..total_articles;
// (TaskDate, Rank) is unique. Enrichment results are stored on the
// article itself so a crashed invocation loses nothing already persisted.
type Article struct {
	ID               uuid.UUID     `json:"id"`
	TaskDate         string        `json:"task_date"`
	StoryID          string        `json:"story_id"`
	Rank             int           `json:"rank"`
	URL              string        `json:"url"`
	TitleEN          string        `json:"title_en"`
	Score            int           `json:"score"`
	PublishedTime    time.Time     `json:"published_time"`
	Status           ArticleStatus `json:"status"`
	TitleZH          string        `json:"title_zh"`
	ContentSummaryZH string        `json:"content_summary_zh"`
	CommentSummaryZH string        `json:"comment_summary_zh"`
	ErrorMessage     string        `json:"error_message"`
	RetryCount       int           `json:"retry_count"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewArticle creates a pending Article enrolled in the task for taskDate
// at the given rank. The URL may be empty (self posts have no external
// link). Returns an error if validation fails.
func NewArticle(
	taskDate string,
	rank int,
	storyID string,
	url string,
	titleEN string,
	score int,
	publishedTime time.Time,
) (*Article, error) {
	article := &Article{
		ID:            uuid.New(),
		TaskDate:      taskDate,
		StoryID:       storyID,
		Rank:          rank,
		URL:           url,
		TitleEN:       titleEN,
		Score:         score,
		PublishedTime: publishedTime,
		Status:        ArticleStatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	if err := article.Validate(); err != nil {
		return nil, err
	}

	return article, nil
}

// Validate checks if the Article has valid data.
// Returns an error if any field fails validation.
func (a *Article) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyArticleID
	}

	if _, err := time.Parse(DateLayout, a.TaskDate); err != nil {
		return ErrInvalidTaskDate
	}

	if a.StoryID == "" {
		return ErrEmptyArticleStoryID
	}

	if a.Rank < 1 {
		return ErrInvalidArticleRank
	}

	if a.TitleEN == "" {
		return ErrEmptyArticleTitle
	}

	if !isValidArticleStatus(a.Status) {
		return ErrInvalidArticleStatus
	}

	return nil
}

// CanRetry reports whether a failed article may be reset to pending
// given the retry ceiling. An article exactly at maxRetries is excluded.
func (a *Article) CanRetry(maxRetries int) bool {
	return a.Status == ArticleStatusFailed && a.RetryCount < maxRetries
}

// isValidArticleStatus checks if the given status is a valid ArticleStatus.
func isValidArticleStatus(status ArticleStatus) bool {
	switch status {
	case ArticleStatusPending, ArticleStatusProcessing,
		ArticleStatusCompleted, ArticleStatusFailed:
		return true
	default:
		return false
	}
}
