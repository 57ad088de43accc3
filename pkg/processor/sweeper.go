package processor

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitbook/booking-core/pkg/broker"
	"github.com/fitbook/booking-core/pkg/config"
	"github.com/fitbook/booking-core/pkg/store"
)

// Sweeper periodically resends outbox records stranded in INIT, typically
// because a crash or broker outage interrupted the after-commit publish.
// Delivery is at-least-once: consumers deduplicate on message_id.
type Sweeper struct {
	store          store.OutboxStore
	broker         broker.MessageBroker
	tracer         trace.Tracer
	maxRetries     int
	publishTimeout time.Duration
	pollInterval   time.Duration
}

func NewSweeper(outboxStore store.OutboxStore, messageBroker broker.MessageBroker, cfg *config.Settings) *Sweeper {
	return &Sweeper{
		store:          outboxStore,
		broker:         messageBroker,
		tracer:         otel.Tracer("booking-core"),
		maxRetries:     cfg.MaxRetries,
		publishTimeout: cfg.PublishTimeout,
		pollInterval:   cfg.PollInterval,
	}
}

// Sweep runs one retry pass over all INIT records, oldest first. A record is
// optimistically marked sent before the broker call and restored to INIT on
// failure; after the retry budget is exhausted it goes terminal SEND_FAIL,
// which should page an operator.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "SweepOutbox")
	defer span.End()

	records, err := s.store.ListRetryable(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int("outbox.retryable_count", len(records)))

	for i := range records {
		s.retry(ctx, &records[i])
	}

	return nil
}

func (s *Sweeper) retry(ctx context.Context, record *store.OutboxRecord) {
	ctx, span := s.tracer.Start(ctx, "RetryOutboxRecord", trace.WithAttributes(
		attribute.String("event.message_id", record.MessageID),
		attribute.String("event.type", string(record.EventType)),
		attribute.Int("event.retry_count", record.RetryCount),
	))
	defer span.End()

	if record.RetryExhausted(s.maxRetries) {
		record.MarkFailed()
		if _, err := s.store.Save(ctx, record); err != nil {
			log.Printf("Failed to mark outbox record %s as failed: %v", record.MessageID, err)
			span.RecordError(err)
		}
		log.Printf("Outbox record %s exhausted %d retries, marked SEND_FAIL", record.MessageID, record.RetryCount)
		return
	}

	// Optimistic mark before the network call; the compare-and-set loses
	// cleanly if the original publisher resumed concurrently.
	swapped, err := s.store.CompareAndSetStatus(ctx, record.MessageID, store.StatusInit, store.StatusSendSuccess)
	if err != nil {
		log.Printf("Failed to claim outbox record %s: %v", record.MessageID, err)
		span.RecordError(err)
		return
	}
	if !swapped {
		return
	}

	if err := sendToBroker(ctx, s.broker, record, s.publishTimeout); err != nil {
		log.Printf("Failed to resend outbox record %s: %v", record.MessageID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if _, rerr := s.store.CompareAndSetStatus(ctx, record.MessageID, store.StatusSendSuccess, store.StatusInit); rerr != nil {
			log.Printf("Failed to restore outbox record %s: %v", record.MessageID, rerr)
		}
	}

	if err := s.store.IncrementRetryCount(ctx, record.MessageID); err != nil {
		log.Printf("Failed to update retry count for outbox record %s: %v", record.MessageID, err)
		span.RecordError(err)
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		}
	}
}
