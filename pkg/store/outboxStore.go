package store

import (
	"context"
)

// OutboxStore defines the database operations for outbox records. It carries
// no business logic; storage failures propagate unchanged.
type OutboxStore interface {
	// Save inserts a new record or updates an existing one by id. When the
	// surrounding context carries a transaction the write joins it, which is
	// how the before-commit phase makes the record atomic with the business
	// change.
	Save(ctx context.Context, record *OutboxRecord) (*OutboxRecord, error)
	// GetByMessageID loads a record by its idempotency key. Returns
	// ErrNotFound when no record exists.
	GetByMessageID(ctx context.Context, messageID string) (*OutboxRecord, error)
	// ListRetryable retrieves all INIT records, oldest first.
	ListRetryable(ctx context.Context) ([]OutboxRecord, error)
	// CompareAndSetStatus flips the status only if the record currently holds
	// the expected status. Returns false when another worker got there first.
	CompareAndSetStatus(ctx context.Context, messageID string, from, to Status) (bool, error)
	// IncrementRetryCount increments the retry count of a record.
	IncrementRetryCount(ctx context.Context, messageID string) error
}
