package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrTaskNotFound, ErrArticleNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., two articles with the same task date and rank).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrClaimLost is returned when a claim matched fewer rows than were
	// selected because a concurrent invocation claimed some of them
	// first. The claiming transaction must roll back and re-select.
	ErrClaimLost = errors.New("claim lost to concurrent invocation")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrArticleNotFound indicates that the requested article does not exist in the store.
	ErrArticleNotFound = fmt.Errorf("%w: article", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrRankExists indicates that an article with the given task date and rank
	// is already enrolled. This is returned when a bulk insert collides with
	// previously persisted rows.
	ErrRankExists = fmt.Errorf("%w: task date and rank", ErrDuplicate)
)

// IsNotFound checks if the error is any kind of "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if the error is any kind of "duplicate entity" error.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
