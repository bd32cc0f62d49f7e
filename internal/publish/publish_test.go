package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records publishes and optionally fails.
type fakeSink struct {
	name      string
	err       error
	published []string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Publish(ctx context.Context, date string, content string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, content)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiPublisher(t *testing.T) {
	t.Parallel()

	t.Run("all sinks receive the digest", func(t *testing.T) {
		t.Parallel()

		a := &fakeSink{name: "a"}
		b := &fakeSink{name: "b"}
		p, err := NewMultiPublisher(discardLogger(), a, b)
		require.NoError(t, err)

		require.NoError(t, p.Publish(context.Background(), "2025-06-15", "digest"))
		assert.Equal(t, []string{"digest"}, a.published)
		assert.Equal(t, []string{"digest"}, b.published)
	})

	t.Run("one failing sink does not block the others", func(t *testing.T) {
		t.Parallel()

		a := &fakeSink{name: "a", err: errors.New("boom")}
		b := &fakeSink{name: "b"}
		p, err := NewMultiPublisher(discardLogger(), a, b)
		require.NoError(t, err)

		require.NoError(t, p.Publish(context.Background(), "2025-06-15", "digest"))
		assert.Equal(t, []string{"digest"}, b.published)
	})

	t.Run("fails only when every sink failed", func(t *testing.T) {
		t.Parallel()

		a := &fakeSink{name: "a", err: errors.New("boom a")}
		b := &fakeSink{name: "b", err: errors.New("boom b")}
		p, err := NewMultiPublisher(discardLogger(), a, b)
		require.NoError(t, err)

		err = p.Publish(context.Background(), "2025-06-15", "digest")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom a")
		assert.Contains(t, err.Error(), "boom b")
	})

	t.Run("requires at least one sink", func(t *testing.T) {
		t.Parallel()

		_, err := NewMultiPublisher(discardLogger())
		assert.Error(t, err)
	})
}

func TestGitHubSink(t *testing.T) {
	t.Parallel()

	t.Run("creates a new file when none exists", func(t *testing.T) {
		t.Parallel()

		var putBody map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			switch r.Method {
			case http.MethodGet:
				w.WriteHeader(http.StatusNotFound)
			case http.MethodPut:
				assert.Equal(t, "/repos/me/digests/contents/daily/2025-06-15.md", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
				w.WriteHeader(http.StatusCreated)
			}
		}))
		t.Cleanup(server.Close)

		sink, err := NewGitHubSink(GitHubConfig{
			Token:      "tok",
			Owner:      "me",
			Repo:       "digests",
			PathPrefix: "daily",
			BaseURL:    server.URL,
		})
		require.NoError(t, err)

		require.NoError(t, sink.Publish(context.Background(), "2025-06-15", "# digest"))

		decoded, err := base64.StdEncoding.DecodeString(putBody["content"])
		require.NoError(t, err)
		assert.Equal(t, "# digest", string(decoded))
		assert.Empty(t, putBody["sha"])
		assert.Contains(t, putBody["message"], "2025-06-15")
	})

	t.Run("republish overwrites via the existing sha", func(t *testing.T) {
		t.Parallel()

		var putBody map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_, _ = w.Write([]byte(`{"sha":"abc123"}`))
			case http.MethodPut:
				require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
				w.WriteHeader(http.StatusOK)
			}
		}))
		t.Cleanup(server.Close)

		sink, err := NewGitHubSink(GitHubConfig{
			Token:   "tok",
			Owner:   "me",
			Repo:    "digests",
			BaseURL: server.URL,
		})
		require.NoError(t, err)

		require.NoError(t, sink.Publish(context.Background(), "2025-06-15", "updated"))
		assert.Equal(t, "abc123", putBody["sha"])
		assert.Contains(t, putBody["message"], "Update")
	})

	t.Run("rejects missing configuration", func(t *testing.T) {
		t.Parallel()

		_, err := NewGitHubSink(GitHubConfig{Owner: "me", Repo: "r"})
		assert.Error(t, err)
	})
}

func TestTelegramSink(t *testing.T) {
	t.Parallel()

	t.Run("posts to the chat", func(t *testing.T) {
		t.Parallel()

		var gotText, gotChat string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
			require.NoError(t, r.ParseForm())
			gotText = r.PostForm.Get("text")
			gotChat = r.PostForm.Get("chat_id")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		t.Cleanup(server.Close)

		sink, err := NewTelegramSink(TelegramConfig{BotToken: "tok", ChatID: "-100", BaseURL: server.URL})
		require.NoError(t, err)

		require.NoError(t, sink.Publish(context.Background(), "2025-06-15", "digest text"))
		assert.Equal(t, "digest text", gotText)
		assert.Equal(t, "-100", gotChat)
	})

	t.Run("long digest is split into multiple messages", func(t *testing.T) {
		t.Parallel()

		var messages []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			messages = append(messages, r.PostForm.Get("text"))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		t.Cleanup(server.Close)

		sink, err := NewTelegramSink(TelegramConfig{BotToken: "tok", ChatID: "-100", BaseURL: server.URL})
		require.NoError(t, err)

		long := strings.Repeat("paragraph one\n\n", 600) // well past 4096 bytes
		require.NoError(t, sink.Publish(context.Background(), "2025-06-15", long))
		assert.Greater(t, len(messages), 1)
		for _, message := range messages {
			assert.LessOrEqual(t, len(message), telegramMessageLimit)
		}
	})
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	t.Run("short content passes through", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"short"}, splitMessage("short", 100))
	})

	t.Run("splits on paragraph boundaries", func(t *testing.T) {
		t.Parallel()

		chunks := splitMessage("aaaa\n\nbbbb\n\ncccc", 10)
		assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, chunks)
	})
}

func TestLocalSink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewLocalSink(filepath.Join(dir, "digests"))
	require.NoError(t, err)

	require.NoError(t, sink.Publish(context.Background(), "2025-06-15", "first"))
	require.NoError(t, sink.Publish(context.Background(), "2025-06-15", "second"))

	data, err := os.ReadFile(filepath.Join(dir, "digests", "2025-06-15.md"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data), "republish overwrites")
}
