package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  slog.Level
	}{
		{name: "debug", level: "debug", want: slog.LevelDebug},
		{name: "info", level: "info", want: slog.LevelInfo},
		{name: "warn", level: "warn", want: slog.LevelWarn},
		{name: "error", level: "error", want: slog.LevelError},
		{name: "mixed case", level: "DeBuG", want: slog.LevelDebug},
		{name: "unknown falls back to info", level: "verbose", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := Setup(tt.level)
			require.NoError(t, err)

			ctx := context.Background()
			assert.True(t, log.Enabled(ctx, tt.want))
			if tt.want > slog.LevelDebug {
				assert.False(t, log.Enabled(ctx, tt.want-4))
			}
		})
	}
}

// Not parallel: Setup swaps the process-wide default logger, which the
// fallback assertion below reads.
func TestLoggerContext(t *testing.T) {
	stored := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), stored)

	assert.Same(t, stored, FromContext(ctx))

	// An empty context falls back to the process-wide default.
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))

	stored := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), stored)
	assert.Same(t, stored, FromContextOrDefault(ctx, fallback))
}
