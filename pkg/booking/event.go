package booking

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TopicFixedReservation is the broker topic carrying fixed-reservation
// generation events.
const TopicFixedReservation = "fixed-reservation"

// fixedReservationLeadTime is how far ahead the next occurrence of a fixed
// reservation is materialized.
const fixedReservationLeadTime = 7 * 24 * time.Hour

// FixedReservationEvent is the wire shape of the "generate fixed reservation
// in 7 days" domain event. MessageID doubles as the outbox idempotency key.
type FixedReservationEvent struct {
	ReservationID int64     `json:"reservationId"`
	MessageID     string    `json:"messageId"`
	TrainerID     int64     `json:"trainerId"`
	MemberID      int64     `json:"memberId"`
	SessionInfoID int64     `json:"sessionInfoId"`
	Name          string    `json:"name"`
	ConfirmDate   time.Time `json:"confirmDate"`
	Topic         string    `json:"topic"`
}

// NewFixedReservationEvent builds the follow-up event for a fixed
// reservation: the next occurrence confirms one week after the current one.
func NewFixedReservationEvent(r *Reservation, name string) *FixedReservationEvent {
	var sessionInfoID int64
	if r.SessionInfoID != nil {
		sessionInfoID = *r.SessionInfoID
	}
	return &FixedReservationEvent{
		ReservationID: r.ID,
		MessageID:     uuid.NewString(),
		TrainerID:     r.TrainerID,
		MemberID:      r.MemberID,
		SessionInfoID: sessionInfoID,
		Name:          name,
		ConfirmDate:   r.ReservationDate.Add(fixedReservationLeadTime),
		Topic:         TopicFixedReservation,
	}
}

// Key is the broker routing key; per-reservation so unrelated reservations
// carry no ordering relationship.
func (e *FixedReservationEvent) Key() string {
	return strconv.FormatInt(e.ReservationID, 10)
}

// Marshal serializes the event for the outbox payload.
func (e *FixedReservationEvent) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Validate checks the deserialized event carries everything materialization
// needs.
func (e *FixedReservationEvent) Validate() error {
	if e.MessageID == "" {
		return errors.New("messageId is required")
	}
	if e.TrainerID == 0 || e.MemberID == 0 || e.SessionInfoID == 0 {
		return errors.New("trainerId, memberId and sessionInfoId are required")
	}
	if e.ConfirmDate.IsZero() {
		return errors.New("confirmDate is required")
	}
	return nil
}
