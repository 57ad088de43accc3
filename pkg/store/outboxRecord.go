package store

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the delivery status of an outbox record.
type Status string

const (
	// StatusInit marks a record written with the business transaction and not
	// yet confirmed delivered. Only INIT records are retryable.
	StatusInit Status = "INIT"
	// StatusSendSuccess marks a record whose payload was handed to the broker.
	StatusSendSuccess Status = "SEND_SUCCESS"
	// StatusSendFail marks a record that exhausted its retry budget.
	StatusSendFail Status = "SEND_FAIL"
)

// AggregateType identifies the domain aggregate an outbox record belongs to.
type AggregateType string

const (
	AggregateReservation AggregateType = "RESERVATION"
)

// EventType identifies the domain event carried by an outbox record.
type EventType string

const (
	EventFixedReservationGenerate EventType = "FIXED_RESERVATION_GENERATE"
)

var (
	// ErrAlreadyDone is returned when a publish is attempted on a record
	// already marked SEND_SUCCESS.
	ErrAlreadyDone = errors.New("outbox record is already done")
	// ErrAlreadyFail is returned when a publish is attempted on a record
	// already marked SEND_FAIL.
	ErrAlreadyFail = errors.New("outbox record is already failed")
	// ErrNotFound is returned when no record exists for a message id.
	ErrNotFound = errors.New("outbox record is not found")
)

// OutboxRecord is a durable row in the outbox table. It carries a serialized
// snapshot of a domain event so delivery can be retried independently of the
// aggregate's current state.
type OutboxRecord struct {
	ID            int64         `json:"outbox_id"`
	AggregateType AggregateType `json:"aggregate_type"`
	AggregateID   string        `json:"aggregate_id"`
	MessageID     string        `json:"message_id"`
	EventType     EventType     `json:"event_type"`
	Payload       string        `json:"payload"`
	Status        Status        `json:"event_status"`
	RetryCount    int           `json:"retry_count"`
	CreatedAt     time.Time     `json:"created_at"`
	SentAt        *time.Time    `json:"sent_at,omitempty"`
}

// NewOutboxRecord creates an INIT record for the given event snapshot. The
// messageID is the event's own UUID and acts as the consumer-side
// deduplication key.
func NewOutboxRecord(aggregateType AggregateType, aggregateID, messageID string, eventType EventType, payload string) *OutboxRecord {
	return &OutboxRecord{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		MessageID:     messageID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusInit,
		RetryCount:    0,
		CreatedAt:     time.Now(),
	}
}

// EnsurePublishable reports the domain error for records that are already
// terminal. SEND_SUCCESS and SEND_FAIL are terminal under normal operation.
func (r *OutboxRecord) EnsurePublishable() error {
	switch r.Status {
	case StatusSendSuccess:
		return fmt.Errorf("%w: message_id=%s", ErrAlreadyDone, r.MessageID)
	case StatusSendFail:
		return fmt.Errorf("%w: message_id=%s", ErrAlreadyFail, r.MessageID)
	default:
		return nil
	}
}

// MarkSent flips the record to SEND_SUCCESS and stamps the delivery time.
func (r *OutboxRecord) MarkSent(now time.Time) error {
	if err := r.EnsurePublishable(); err != nil {
		return err
	}
	r.Status = StatusSendSuccess
	r.SentAt = &now
	return nil
}

// MarkFailed flips the record to terminal SEND_FAIL after the retry budget
// is exhausted.
func (r *OutboxRecord) MarkFailed() {
	r.Status = StatusSendFail
}

// Restore rolls an optimistically marked record back to INIT so the sweeper
// picks it up again. This is the only non-monotone status transition.
func (r *OutboxRecord) Restore() {
	r.Status = StatusInit
	r.SentAt = nil
}

// RetryExhausted reports whether the record has used up its retry budget.
func (r *OutboxRecord) RetryExhausted(maxRetries int) bool {
	return r.RetryCount >= maxRetries
}
