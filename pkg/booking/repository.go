package booking

import "context"

// ReservationRepository defines the persistence operations for reservations.
type ReservationRepository interface {
	Save(ctx context.Context, reservation *Reservation) (*Reservation, error)
	GetByID(ctx context.Context, id int64) (*Reservation, error)
}

// SessionRepository defines the persistence operations for sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *Session) (*Session, error)
	// GetByReservationID loads the session paired with a reservation. Returns
	// ErrSessionNotFound when the pairing is broken.
	GetByReservationID(ctx context.Context, reservationID int64) (*Session, error)
}

// SessionInfoService is the collaborator accounting for a member's purchased
// sessions. Completing a session debits one unit.
type SessionInfoService interface {
	DeductSession(ctx context.Context, sessionInfoID int64) error
}

// EventWriter is the two-phase outbox protocol as seen from the domain. Stage
// runs inside the caller's transaction; Publish must be called only after
// that transaction has durably committed.
type EventWriter interface {
	Stage(ctx context.Context, event *FixedReservationEvent) error
	Publish(ctx context.Context, messageID string) error
}
