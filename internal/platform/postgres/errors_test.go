package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "nil passes through",
			err:     nil,
			wantErr: nil,
		},
		{
			name:    "no rows maps to not found",
			err:     fmt.Errorf("query: %w", sql.ErrNoRows),
			wantErr: store.ErrNotFound,
		},
		{
			name:    "unique violation maps to duplicate",
			err:     &pgconn.PgError{Code: "23505", ConstraintName: "articles_task_date_rank_key"},
			wantErr: store.ErrDuplicate,
		},
		{
			name:    "foreign key violation maps to invalid entity",
			err:     &pgconn.PgError{Code: "23503", ConstraintName: "articles_task_date_fkey"},
			wantErr: store.ErrInvalidEntity,
		},
		{
			name:    "check violation maps to invalid entity",
			err:     &pgconn.PgError{Code: "23514", ConstraintName: "tasks_check"},
			wantErr: store.ErrInvalidEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mapped := postgres.MapError(tt.err)
			if tt.wantErr == nil {
				assert.NoError(t, mapped)
				return
			}
			assert.ErrorIs(t, mapped, tt.wantErr)
			// The driver error text is preserved for diagnostics.
			assert.Contains(t, mapped.Error(), tt.err.Error())
		})
	}

	t.Run("unrecognized errors pass through unchanged", func(t *testing.T) {
		t.Parallel()

		original := errors.New("connection reset")
		assert.Equal(t, original, postgres.MapError(original))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, postgres.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, postgres.IsUniqueViolation(errors.New("other")))
}
