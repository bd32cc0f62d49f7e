// Package publish delivers rendered digests to the configured sinks.
// Delivery is at-least-once: sinks overwrite any existing document for
// the same date, so a re-publish converges instead of duplicating.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Sink delivers one rendered digest.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Publish delivers the document for the given date. Publishing the
	// same date twice must overwrite, not duplicate.
	Publish(ctx context.Context, date string, content string) error
}

// MultiPublisher fans a digest out to every configured sink. Sinks fail
// independently: one sink's error never blocks the others, and the
// publish as a whole fails only when every sink failed.
type MultiPublisher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiPublisher creates a MultiPublisher over the given sinks.
func NewMultiPublisher(logger *slog.Logger, sinks ...Sink) (*MultiPublisher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if len(sinks) == 0 {
		return nil, errors.New("at least one sink is required")
	}
	return &MultiPublisher{sinks: sinks, logger: logger}, nil
}

// Publish implements task.Publisher.
func (p *MultiPublisher) Publish(ctx context.Context, date string, content string) error {
	var failures []error
	succeeded := 0

	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, date, content); err != nil {
			p.logger.ErrorContext(ctx, "sink publish failed",
				slog.String("sink", sink.Name()),
				slog.String("task_date", date),
				slog.String("error", err.Error()))
			failures = append(failures, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		succeeded++
		p.logger.InfoContext(ctx, "sink publish succeeded",
			slog.String("sink", sink.Name()),
			slog.String("task_date", date))
	}

	if succeeded == 0 {
		return fmt.Errorf("all %d sinks failed: %w", len(p.sinks), errors.Join(failures...))
	}

	if len(failures) > 0 {
		p.logger.WarnContext(ctx, "digest published with partial sink failures",
			slog.String("task_date", date),
			slog.Int("succeeded", succeeded),
			slog.Int("failed", len(failures)))
	}
	return nil
}
