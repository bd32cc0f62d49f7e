package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, extract extractFunc) *Fetcher {
	t.Helper()

	f, err := NewFetcher(slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	require.NoError(t, err)
	f.extract = extract
	return f
}

func TestFetchArticlesBatch(t *testing.T) {
	t.Parallel()

	t.Run("results align with input order", func(t *testing.T) {
		t.Parallel()

		f := newTestFetcher(t, func(url string, timeout time.Duration) (readability.Article, error) {
			return readability.Article{
				TextContent: "content of " + url,
				Excerpt:     "excerpt of " + url,
			}, nil
		})

		urls := []string{"https://a.example", "https://b.example", "https://c.example"}
		results, err := f.FetchArticlesBatch(context.Background(), urls)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for i, url := range urls {
			assert.Equal(t, "content of "+url, results[i].FullContent)
			assert.Equal(t, "excerpt of "+url, results[i].Description)
		}
	})

	t.Run("failed extraction yields empty entry, not a batch error", func(t *testing.T) {
		t.Parallel()

		f := newTestFetcher(t, func(url string, timeout time.Duration) (readability.Article, error) {
			if url == "https://broken.example" {
				return readability.Article{}, errors.New("connection refused")
			}
			return readability.Article{TextContent: "ok"}, nil
		})

		results, err := f.FetchArticlesBatch(context.Background(), []string{
			"https://a.example",
			"https://broken.example",
			"https://b.example",
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "ok", results[0].FullContent)
		assert.Empty(t, results[1].FullContent)
		assert.Empty(t, results[1].Description)
		assert.Equal(t, "ok", results[2].FullContent)
	})

	t.Run("empty url is skipped without extraction", func(t *testing.T) {
		t.Parallel()

		calls := 0
		f := newTestFetcher(t, func(url string, timeout time.Duration) (readability.Article, error) {
			calls++
			return readability.Article{TextContent: "ok"}, nil
		})

		results, err := f.FetchArticlesBatch(context.Background(), []string{"", "https://a.example"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Empty(t, results[0].FullContent)
		assert.Equal(t, 1, calls)
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		f := newTestFetcher(t, func(url string, timeout time.Duration) (readability.Article, error) {
			return readability.Article{}, nil
		})

		results, err := f.FetchArticlesBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
