// Package hackernews implements the task.StorySource and
// task.CommentFetcher interfaces over the Algolia Hacker News search API.
package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/phrazzld/digest-api/internal/task"
)

// DefaultBaseURL is the public Algolia HN search endpoint.
const DefaultBaseURL = "https://hn.algolia.com/api/v1"

const defaultTimeout = 30 * time.Second

// Client talks to the Algolia HN API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Client. An empty baseURL selects the public API.
func NewClient(logger *slog.Logger, baseURL string) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}, nil
}

// searchResponse is the subset of the Algolia search payload we read.
type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	ObjectID   string `json:"objectID"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Points     int    `json:"points"`
	CreatedAtI int64  `json:"created_at_i"`
}

// FetchRankedStories implements task.StorySource. Stories published in
// [start, end) come back ordered by points descending, capped at limit.
func (c *Client) FetchRankedStories(ctx context.Context, limit int, start, end time.Time) ([]task.RankedStory, error) {
	query := url.Values{}
	query.Set("tags", "story")
	query.Set("hitsPerPage", fmt.Sprintf("%d", limit))
	query.Set("numericFilters", fmt.Sprintf("created_at_i>=%d,created_at_i<%d", start.Unix(), end.Unix()))

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, query.Encode())

	var payload searchResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to search stories: %w", err)
	}

	stories := make([]task.RankedStory, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		if hit.Title == "" {
			continue
		}
		stories = append(stories, task.RankedStory{
			StoryID:       hit.ObjectID,
			URL:           hit.URL,
			Title:         hit.Title,
			Score:         hit.Points,
			PublishedTime: time.Unix(hit.CreatedAtI, 0).UTC(),
		})
	}

	// The search endpoint orders by relevance; rank within the digest is
	// by points.
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].Score > stories[j].Score
	})
	if len(stories) > limit {
		stories = stories[:limit]
	}

	c.logger.DebugContext(ctx, "fetched ranked stories",
		slog.Int("count", len(stories)),
		slog.Time("window_start", start))

	return stories, nil
}

// item is the subset of the Algolia item payload we read. Children nest
// recursively; deleted comments have empty text.
type item struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Children []item `json:"children"`
}

// commentWorkers bounds concurrent thread fetches within one batch.
const commentWorkers = 4

// FetchCommentsBatch implements task.CommentFetcher. Threads are
// fetched concurrently through a bounded worker pool; results align one
// to one with the input story IDs in input order. Each story yields up
// to perStoryLimit comment texts in thread order, HTML stripped. A
// story whose thread cannot be fetched yields an empty slice rather
// than failing the batch; comments are enrichment, not required input.
func (c *Client) FetchCommentsBatch(ctx context.Context, storyIDs []string, perStoryLimit int) ([][]string, error) {
	results := make([][]string, len(storyIDs))

	workers := commentWorkers
	if len(storyIDs) < workers {
		workers = len(storyIDs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = c.fetchThread(ctx, storyIDs[i], perStoryLimit)
			}
		}()
	}

	for i := range storyIDs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		if results[i] == nil {
			results[i] = []string{}
		}
	}
	return results, nil
}

// fetchThread degrades a failed thread to no comments.
func (c *Client) fetchThread(ctx context.Context, storyID string, limit int) []string {
	comments, err := c.fetchComments(ctx, storyID, limit)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to fetch comments, continuing without",
			slog.String("story_id", storyID),
			slog.String("error", err.Error()))
		return []string{}
	}
	return comments
}

func (c *Client) fetchComments(ctx context.Context, storyID string, limit int) ([]string, error) {
	endpoint := fmt.Sprintf("%s/items/%s", c.baseURL, url.PathEscape(storyID))

	var root item
	if err := c.getJSON(ctx, endpoint, &root); err != nil {
		return nil, err
	}

	comments := make([]string, 0, limit)
	collectComments(root.Children, limit, &comments)
	return comments, nil
}

// collectComments walks the comment tree depth-first, matching the
// order threads are displayed, until limit texts are collected.
func collectComments(children []item, limit int, out *[]string) {
	for _, child := range children {
		if len(*out) >= limit {
			return
		}
		if child.Type == "comment" && child.Text != "" {
			text := stripHTML(child.Text)
			if text != "" {
				*out = append(*out, text)
			}
		}
		collectComments(child.Children, limit, out)
	}
}

// stripHTML reduces a comment's HTML body to plain text.
func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
