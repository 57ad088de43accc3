package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitbook/booking-core/pkg/booking"
	"github.com/fitbook/booking-core/pkg/broker"
	"github.com/fitbook/booking-core/pkg/config"
	"github.com/fitbook/booking-core/pkg/store"
)

// Publisher implements the two-phase transactional-outbox protocol.
//
// Stage runs in the before-commit phase: it writes the INIT record inside the
// caller's transaction so the event's existence is durably atomic with the
// business change. Publish runs in the after-commit phase, on its own
// connection, so a broker failure cannot roll back the business write.
type Publisher struct {
	store          store.OutboxStore
	broker         broker.MessageBroker
	tracer         trace.Tracer
	publishTimeout time.Duration
}

func NewPublisher(outboxStore store.OutboxStore, messageBroker broker.MessageBroker, cfg *config.Settings) *Publisher {
	return &Publisher{
		store:          outboxStore,
		broker:         messageBroker,
		tracer:         otel.Tracer("booking-core"),
		publishTimeout: cfg.PublishTimeout,
	}
}

// Stage inserts the INIT outbox record for the event inside the caller's
// transaction. If the surrounding write rolls back, so does the record.
func (p *Publisher) Stage(ctx context.Context, event *booking.FixedReservationEvent) error {
	ctx, span := p.tracer.Start(ctx, "StageOutboxRecord",
		trace.WithAttributes(attribute.String("event.message_id", event.MessageID)))
	defer span.End()

	payload, err := event.Marshal()
	if err != nil {
		span.RecordError(err)
		return err
	}

	record := store.NewOutboxRecord(
		store.AggregateReservation,
		event.Key(),
		event.MessageID,
		store.EventFixedReservationGenerate,
		payload,
	)

	if _, err := p.store.Save(ctx, record); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// Publish delivers the staged record to the broker. It must only be called
// after the staging transaction has durably committed.
//
// Terminal records raise their domain error. A broker failure is not
// propagated: the record is restored to INIT and left for the sweeper.
func (p *Publisher) Publish(ctx context.Context, messageID string) error {
	ctx, span := p.tracer.Start(ctx, "PublishOutboxRecord",
		trace.WithAttributes(attribute.String("event.message_id", messageID)))
	defer span.End()

	record, err := p.store.GetByMessageID(ctx, messageID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := record.EnsurePublishable(); err != nil {
		span.RecordError(err)
		return err
	}

	swapped, err := p.store.CompareAndSetStatus(ctx, messageID, store.StatusInit, store.StatusSendSuccess)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !swapped {
		// Lost the race against the sweeper. Report whatever terminal state
		// the winner left behind.
		record, err = p.store.GetByMessageID(ctx, messageID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		return record.EnsurePublishable()
	}

	if err := sendToBroker(ctx, p.broker, record, p.publishTimeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		// Keep the record retryable; the sweeper picks it up.
		if _, rerr := p.store.CompareAndSetStatus(ctx, messageID, store.StatusSendSuccess, store.StatusInit); rerr != nil {
			log.Printf("Failed to restore outbox record %s: %v", messageID, rerr)
		}
		log.Printf("Failed to publish outbox record %s: %v", messageID, err)
		return nil
	}

	return nil
}

// sendToBroker decodes a record's payload back into its event and publishes
// it on the event's own topic and key. The broker call is bounded by the
// configured timeout; a timeout counts as any other publish failure.
func sendToBroker(ctx context.Context, messageBroker broker.MessageBroker, record *store.OutboxRecord, timeout time.Duration) error {
	topic, key, err := destinationFor(record)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"message_id": record.MessageID,
		"event_type": string(record.EventType),
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return messageBroker.Publish(ctx, topic, key, []byte(record.Payload), headers)
}

// destinationFor resolves the topic and routing key from the serialized
// event. The event-type set is closed; an unknown type is a hard error.
func destinationFor(record *store.OutboxRecord) (topic, key string, err error) {
	switch record.EventType {
	case store.EventFixedReservationGenerate:
		var event booking.FixedReservationEvent
		if err := json.Unmarshal([]byte(record.Payload), &event); err != nil {
			return "", "", fmt.Errorf("failed to decode payload for %s: %w", record.MessageID, err)
		}
		return event.Topic, event.Key(), nil
	default:
		return "", "", fmt.Errorf("unsupported event type: %s", record.EventType)
	}
}
