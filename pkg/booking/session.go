package booking

import (
	"fmt"
	"time"
)

// SessionStatus represents the lifecycle state of a training session.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "SESSION_WAITING"
	SessionCompleted SessionStatus = "SESSION_COMPLETED"
	SessionCancelled SessionStatus = "SESSION_CANCELLED"
	SessionNotAttend SessionStatus = "SESSION_NOT_ATTEND"
	SessionNoShow    SessionStatus = "NO_SHOW"
)

// Session is the unit a member's purchased session count is debited against.
// One session pairs with exactly one reservation.
type Session struct {
	ID            int64
	ReservationID int64
	Status        SessionStatus
	CancelReason  string
	IsCompleted   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSession creates a waiting session for an approved or fixed reservation.
func NewSession(reservationID int64) *Session {
	now := time.Now()
	return &Session{
		ReservationID: reservationID,
		Status:        SessionWaiting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Session) ended() bool {
	return s.Status == SessionCompleted || s.Status == SessionNotAttend
}

// Cancel cancels the session with the given reason. Cancelling twice and
// cancelling an ended session are distinct guard failures.
func (s *Session) Cancel(reason string) error {
	if s.Status == SessionCancelled {
		return fmt.Errorf("%w: session_id=%d", ErrSessionAlreadyCancel, s.ID)
	}
	if s.ended() {
		return fmt.Errorf("%w: session_id=%d status=%s", ErrSessionAlreadyEnd, s.ID, s.Status)
	}

	s.Status = SessionCancelled
	s.CancelReason = reason
	s.UpdatedAt = time.Now()
	return nil
}

// Complete marks the session held. The caller debits one unit from the
// member's remaining session count through the session-info collaborator.
func (s *Session) Complete() error {
	if s.Status == SessionCancelled {
		return fmt.Errorf("%w: session_id=%d", ErrSessionAlreadyCancel, s.ID)
	}
	if s.ended() {
		return fmt.Errorf("%w: session_id=%d status=%s", ErrSessionAlreadyEnd, s.ID, s.Status)
	}

	s.Status = SessionCompleted
	s.IsCompleted = true
	s.UpdatedAt = time.Now()
	return nil
}

// MarkNotAttend records the member did not attend. Terminal.
func (s *Session) MarkNotAttend() error {
	if s.Status == SessionCancelled {
		return fmt.Errorf("%w: session_id=%d", ErrSessionAlreadyCancel, s.ID)
	}
	if s.ended() {
		return fmt.Errorf("%w: session_id=%d status=%s", ErrSessionAlreadyEnd, s.ID, s.Status)
	}

	s.Status = SessionNotAttend
	s.UpdatedAt = time.Now()
	return nil
}
