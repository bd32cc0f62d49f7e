package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSink writes the digest to a file on disk, one file per date.
// Useful in development and as a durable fallback sink.
type LocalSink struct {
	dir string
}

// NewLocalSink creates a LocalSink writing under dir.
func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		return nil, errors.New("local sink directory cannot be empty")
	}
	return &LocalSink{dir: dir}, nil
}

// Name implements Sink.
func (s *LocalSink) Name() string { return "local" }

// Publish implements Sink. Writing the same date twice overwrites the
// previous file.
func (s *LocalSink) Publish(ctx context.Context, date string, content string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create digest directory: %w", err)
	}

	path := filepath.Join(s.dir, date+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write digest file: %w", err)
	}
	return nil
}
