package task

import (
	"context"
	"time"
)

// RankedStory is one candidate story returned by the story source,
// already ordered by rank.
type RankedStory struct {
	StoryID       string
	URL           string
	Title         string
	Score         int
	PublishedTime time.Time
}

// FetchedContent is the extracted content of one article URL. Either
// field may be empty when extraction produced nothing for it.
type FetchedContent struct {
	FullContent string
	Description string
}

// StorySource provides the day's ranked candidate stories.
type StorySource interface {
	// FetchRankedStories returns up to limit stories published within
	// [start, end), ordered by rank.
	FetchRankedStories(ctx context.Context, limit int, start, end time.Time) ([]RankedStory, error)
}

// StoryFilter optionally drops disallowed stories before enrollment.
// Implementations return a subset of the input, preserving order.
type StoryFilter interface {
	FilterStories(ctx context.Context, stories []RankedStory) ([]RankedStory, error)
}

// ContentFetcher retrieves article content for a batch of URLs.
// The result MUST have exactly one entry per input URL, in input order.
type ContentFetcher interface {
	FetchArticlesBatch(ctx context.Context, urls []string) ([]FetchedContent, error)
}

// CommentFetcher retrieves discussion comments for a batch of stories.
// The result MUST have exactly one entry per input story ID, in input
// order; a story with no comments gets an empty slice, never a missing
// entry.
type CommentFetcher interface {
	FetchCommentsBatch(ctx context.Context, storyIDs []string, perStoryLimit int) ([][]string, error)
}

// Enricher performs the batched LLM calls. Every method MUST return a
// slice whose length exactly equals its input length, using the empty
// string as an explicit "no result produced" sentinel at indices where
// enrichment failed. Callers test that sentinel by equality, never by
// truthiness, because downstream code treats any non-sentinel value as
// produced output.
type Enricher interface {
	// TranslateTitlesBatch translates all titles in one call.
	TranslateTitlesBatch(ctx context.Context, titles []string) ([]string, error)

	// SummarizeContentBatch summarizes all texts in one call, each
	// summary bounded to roughly maxLen characters.
	SummarizeContentBatch(ctx context.Context, texts []string, maxLen int) ([]string, error)

	// SummarizeCommentsBatch summarizes each story's comment thread in
	// one call, each summary bounded to roughly maxLen characters.
	SummarizeCommentsBatch(ctx context.Context, commentBatches [][]string, maxLen int) ([]string, error)
}

// Renderer maps completed articles, ordered by rank, to the publishable
// document.
type Renderer interface {
	Render(articles []*Digest, date string) (string, error)
}

// Publisher delivers the rendered document to the configured sinks.
// Delivery is at-least-once with idempotent overwrite semantics; an
// error means every sink failed.
type Publisher interface {
	Publish(ctx context.Context, date string, content string) error
}

// Digest is one publish-ready article record.
type Digest struct {
	Rank             int
	StoryID          string
	URL              string
	TitleEN          string
	TitleZH          string
	Score            int
	ContentSummaryZH string
	CommentSummaryZH string
}
