package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitbook/booking-core/pkg/booking"
)

// ErrPayloadInvalid marks a poison message: the broker's own redelivery or
// DLQ policy owns it, this core never retries it.
var ErrPayloadInvalid = errors.New("outbox payload is invalid")

// ReservationMaterializer turns a consumed fixed-reservation event into the
// actual recurring reservation. Implemented by booking.Service.
type ReservationMaterializer interface {
	MaterializeFixedReservation(ctx context.Context, event *booking.FixedReservationEvent) error
}

// Consumer handles fixed-reservation events delivered by the broker one week
// after they were staged.
type Consumer struct {
	materializer ReservationMaterializer
	tracer       trace.Tracer
}

func NewConsumer(materializer ReservationMaterializer) *Consumer {
	return &Consumer{
		materializer: materializer,
		tracer:       otel.Tracer("booking-core"),
	}
}

// Handle deserializes a broker message and materializes the reservation.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	ctx, span := c.tracer.Start(ctx, "ConsumeFixedReservation")
	defer span.End()

	var event booking.FixedReservationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	if err := event.Validate(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}

	span.SetAttributes(
		attribute.String("event.message_id", event.MessageID),
		attribute.Int64("event.reservation_id", event.ReservationID),
	)

	return c.materializer.MaterializeFixedReservation(ctx, &event)
}
