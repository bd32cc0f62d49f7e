package domain

import (
	"errors"
	"time"
)

// BatchStatus represents the outcome of one process-next-batch invocation
type BatchStatus string

// Possible batch status values
const (
	// BatchStatusSuccess means every article in the batch completed.
	BatchStatusSuccess BatchStatus = "success"

	// BatchStatusPartial means at least one article failed but the batch
	// itself ran to completion.
	BatchStatusPartial BatchStatus = "partial"

	// BatchStatusFailed means the batch aborted and every claimed article
	// was marked failed.
	BatchStatusFailed BatchStatus = "failed"
)

// Common validation errors for BatchAudit
var (
	ErrInvalidBatchIndex  = errors.New("batch index must be positive")
	ErrInvalidBatchStatus = errors.New("invalid batch status")
)

// BatchAudit is an append-only record of one batch invocation, used for
// diagnostics only. It is never mutated after insert.
type BatchAudit struct {
	TaskDate        string      `json:"task_date"`
	BatchIndex      int         `json:"batch_index"`
	ArticleCount    int         `json:"article_count"`
	SubrequestCount int         `json:"subrequest_count"`
	DurationMS      int64       `json:"duration_ms"`
	Status          BatchStatus `json:"status"`
	ErrorMessage    string      `json:"error_message"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Validate checks if the BatchAudit has valid data.
func (b *BatchAudit) Validate() error {
	if _, err := time.Parse(DateLayout, b.TaskDate); err != nil {
		return ErrInvalidTaskDate
	}

	if b.BatchIndex < 1 {
		return ErrInvalidBatchIndex
	}

	if !isValidBatchStatus(b.Status) {
		return ErrInvalidBatchStatus
	}

	return nil
}

// isValidBatchStatus checks if the given status is a valid BatchStatus.
func isValidBatchStatus(status BatchStatus) bool {
	switch status {
	case BatchStatusSuccess, BatchStatusPartial, BatchStatusFailed:
		return true
	default:
		return false
	}
}
