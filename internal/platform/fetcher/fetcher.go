// Package fetcher implements the task.ContentFetcher interface using
// readability extraction over plain HTTP fetches.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/phrazzld/digest-api/internal/task"
)

const (
	defaultWorkerCount = 5
	extractionTimeout  = 30 * time.Second
)

// extractFunc fetches one URL and extracts its readable content.
// Swappable so tests can run without the network.
type extractFunc func(url string, timeout time.Duration) (readability.Article, error)

// Fetcher extracts readable article content with a bounded worker pool.
type Fetcher struct {
	logger  *slog.Logger
	workers int
	extract extractFunc
}

// NewFetcher creates a Fetcher. A workers value below 1 selects the
// default pool size.
func NewFetcher(logger *slog.Logger, workers int) (*Fetcher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if workers < 1 {
		workers = defaultWorkerCount
	}
	return &Fetcher{
		logger:  logger,
		workers: workers,
		extract: func(url string, timeout time.Duration) (readability.Article, error) {
			return readability.FromURL(url, timeout)
		},
	}, nil
}

// FetchArticlesBatch implements task.ContentFetcher. Results align one
// to one with the input URLs in input order. A URL whose extraction
// fails, or an empty URL (self posts), yields an empty FetchedContent
// rather than failing the batch.
func (f *Fetcher) FetchArticlesBatch(ctx context.Context, urls []string) ([]task.FetchedContent, error) {
	results := make([]task.FetchedContent, len(urls))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < f.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = f.fetchOne(ctx, urls[i])
			}
		}()
	}

	for i, url := range urls {
		if url == "" {
			continue
		}
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

	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) task.FetchedContent {
	article, err := f.extract(url, extractionTimeout)
	if err != nil {
		f.logger.WarnContext(ctx, "content extraction failed, continuing without",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return task.FetchedContent{}
	}

	return task.FetchedContent{
		FullContent: article.TextContent,
		Description: article.Excerpt,
	}
}
