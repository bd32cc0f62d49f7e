package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/digest-api/internal/domain"
)

// BatchAuditStore defines the interface for the append-only batch audit trail.
type BatchAuditStore interface {
	// Insert appends one audit record. Records are never mutated.
	Insert(ctx context.Context, audit *domain.BatchAudit) error

	// NextIndex returns the next batch index for the date, i.e. one past
	// the highest recorded index (1 for the first batch).
	NextIndex(ctx context.Context, date string) (int, error)

	// ListByDate retrieves all audit records for the date ordered by
	// batch index, for diagnostics.
	ListByDate(ctx context.Context, date string) ([]*domain.BatchAudit, error)

	// WithTx returns a new BatchAuditStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) BatchAuditStore
}
