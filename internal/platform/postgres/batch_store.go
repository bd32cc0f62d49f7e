package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

// PostgresBatchAuditStore implements the store.BatchAuditStore interface
// using a PostgreSQL database as the storage backend. The relation is
// append-only; there is no update path.
type PostgresBatchAuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBatchAuditStore creates a new PostgreSQL implementation of the
// BatchAuditStore interface. If logger is nil, a default logger will be used.
func NewPostgresBatchAuditStore(db store.DBTX, logger *slog.Logger) *PostgresBatchAuditStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBatchAuditStore{
		db:     db,
		logger: logger.With(slog.String("component", "batch_audit_store")),
	}
}

// Ensure PostgresBatchAuditStore implements store.BatchAuditStore interface
var _ store.BatchAuditStore = (*PostgresBatchAuditStore)(nil)

// WithTx implements store.BatchAuditStore.WithTx
func (s *PostgresBatchAuditStore) WithTx(tx *sql.Tx) store.BatchAuditStore {
	return &PostgresBatchAuditStore{
		db:     tx,
		logger: s.logger,
	}
}

// Insert implements store.BatchAuditStore.Insert
func (s *PostgresBatchAuditStore) Insert(ctx context.Context, audit *domain.BatchAudit) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := audit.Validate(); err != nil {
		log.Warn("batch audit validation failed during insert",
			slog.String("error", err.Error()),
			slog.String("task_date", audit.TaskDate),
			slog.Int("batch_index", audit.BatchIndex))
		return err
	}

	query := `
		INSERT INTO batch_audits (task_date, batch_index, article_count, subrequest_count,
		                          duration_ms, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	createdAt := audit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		query,
		audit.TaskDate,
		audit.BatchIndex,
		audit.ArticleCount,
		audit.SubrequestCount,
		audit.DurationMS,
		audit.Status,
		audit.ErrorMessage,
		createdAt,
	)
	if err != nil {
		log.Error("failed to insert batch audit",
			slog.String("error", err.Error()),
			slog.String("task_date", audit.TaskDate),
			slog.Int("batch_index", audit.BatchIndex))
		return MapError(err)
	}

	log.Debug("batch audit recorded",
		slog.String("task_date", audit.TaskDate),
		slog.Int("batch_index", audit.BatchIndex),
		slog.String("status", string(audit.Status)))
	return nil
}

// NextIndex implements store.BatchAuditStore.NextIndex
func (s *PostgresBatchAuditStore) NextIndex(ctx context.Context, date string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COALESCE(MAX(batch_index), 0) + 1
		FROM batch_audits
		WHERE task_date = $1
	`

	var next int
	if err := s.db.QueryRowContext(ctx, query, date).Scan(&next); err != nil {
		log.Error("failed to compute next batch index",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return 0, MapError(err)
	}

	return next, nil
}

// ListByDate implements store.BatchAuditStore.ListByDate
func (s *PostgresBatchAuditStore) ListByDate(ctx context.Context, date string) ([]*domain.BatchAudit, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT task_date, batch_index, article_count, subrequest_count,
		       duration_ms, status, error_message, created_at
		FROM batch_audits
		WHERE task_date = $1
		ORDER BY batch_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		log.Error("failed to query batch audits",
			slog.String("error", err.Error()),
			slog.String("task_date", date))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var audits []*domain.BatchAudit
	for rows.Next() {
		var audit domain.BatchAudit
		var status string

		err := rows.Scan(
			&audit.TaskDate,
			&audit.BatchIndex,
			&audit.ArticleCount,
			&audit.SubrequestCount,
			&audit.DurationMS,
			&status,
			&audit.ErrorMessage,
			&audit.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan batch audit row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		audit.Status = domain.BatchStatus(status)
		audits = append(audits, &audit)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if audits == nil {
		audits = []*domain.BatchAudit{}
	}

	return audits, nil
}
