package booking

import (
	"fmt"
	"time"
)

// ReservationStatus represents the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationWaiting       ReservationStatus = "RESERVATION_WAITING"
	ReservationCompleted     ReservationStatus = "RESERVATION_COMPLETED"
	ReservationCancelled     ReservationStatus = "RESERVATION_CANCELLED"
	ReservationRejected      ReservationStatus = "RESERVATION_REJECTED"
	ReservationChangeRequest ReservationStatus = "RESERVATION_CHANGE_REQUEST"

	// Administrative pseudo-statuses. Reservations in these states block a
	// calendar slot and carry no member or session reference.
	ReservationDayOff       ReservationStatus = "DAY_OFF"
	ReservationDisabledTime ReservationStatus = "DISABLED_TIME_RESERVATION"
)

// Reservation is the aggregate root for a booking. It owns its Session 1:1
// and enforces transition legality; persistence is delegated to a repository.
type Reservation struct {
	ID              int64
	MemberID        int64
	TrainerID       int64
	SessionInfoID   *int64 // nil for day-off and disabled-time blocks
	Status          ReservationStatus
	ReservationDate time.Time
	ChangeDate      *time.Time
	CancelReason    string
	ApprovedCancel  bool
	Priority        int
	IsFixed         bool
	IsDayOff        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewReservation creates a waiting reservation for a member slot.
func NewReservation(memberID, trainerID int64, sessionInfoID int64, date time.Time, priority int) *Reservation {
	now := time.Now()
	return &Reservation{
		MemberID:        memberID,
		TrainerID:       trainerID,
		SessionInfoID:   &sessionInfoID,
		Status:          ReservationWaiting,
		ReservationDate: date,
		Priority:        priority,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewFixedReservation creates an already-confirmed recurring reservation.
// Fixed slots skip the waiting phase because the trainer approved the series
// when it was first booked.
func NewFixedReservation(memberID, trainerID int64, sessionInfoID int64, date time.Time) *Reservation {
	r := NewReservation(memberID, trainerID, sessionInfoID, date, 0)
	r.Status = ReservationCompleted
	r.IsFixed = true
	return r
}

// NewDayOff creates a slot-blocking reservation with no member or session.
func NewDayOff(trainerID int64, date time.Time) *Reservation {
	now := time.Now()
	return &Reservation{
		TrainerID:       trainerID,
		Status:          ReservationDayOff,
		ReservationDate: date,
		IsDayOff:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewDisabledTime creates a slot-blocking reservation for a disabled time
// window.
func NewDisabledTime(trainerID int64, date time.Time) *Reservation {
	r := NewDayOff(trainerID, date)
	r.Status = ReservationDisabledTime
	r.IsDayOff = false
	return r
}

// Cancellable reports whether the reservation can still be cancelled. Only
// waiting and completed reservations may be cancelled.
func (r *Reservation) Cancellable() bool {
	return r.Status == ReservationWaiting || r.Status == ReservationCompleted
}

// Cancel cancels the reservation immediately and unilaterally. Guard errors
// mirror the state machine: cancelling twice and cancelling a terminal
// reservation are distinct failures.
func (r *Reservation) Cancel(reason string, date time.Time) error {
	if r.Status == ReservationCancelled {
		return fmt.Errorf("%w: reservation_id=%d", ErrReservationAlreadyCancel, r.ID)
	}
	if !r.Cancellable() {
		return fmt.Errorf("%w: reservation_id=%d status=%s", ErrReservationCancelNotAllowed, r.ID, r.Status)
	}

	r.Status = ReservationCancelled
	r.CancelReason = reason
	r.ApprovedCancel = true
	r.UpdatedAt = date
	return nil
}

// CancelRequest records a member's wish to cancel. The reservation moves to
// the change-request state and waits for trainer approval; no session is
// touched until the trainer decides.
func (r *Reservation) CancelRequest(reason string, date time.Time) error {
	if r.Status == ReservationCancelled {
		return fmt.Errorf("%w: reservation_id=%d", ErrReservationAlreadyCancel, r.ID)
	}
	if !r.Cancellable() {
		return fmt.Errorf("%w: reservation_id=%d status=%s", ErrReservationCancelNotAllowed, r.ID, r.Status)
	}

	r.Status = ReservationChangeRequest
	r.CancelReason = reason
	r.ApprovedCancel = false
	r.ChangeDate = &date
	r.UpdatedAt = time.Now()
	return nil
}

// ApproveCancel finalizes a member's pending cancel request. Trainer only.
func (r *Reservation) ApproveCancel(date time.Time) error {
	if r.Status == ReservationCancelled {
		return fmt.Errorf("%w: reservation_id=%d", ErrReservationAlreadyCancel, r.ID)
	}
	if r.Status != ReservationChangeRequest {
		return fmt.Errorf("%w: reservation_id=%d status=%s", ErrReservationCancelNotAllowed, r.ID, r.Status)
	}

	r.Status = ReservationCancelled
	r.ApprovedCancel = true
	r.UpdatedAt = date
	return nil
}

// Approve confirms a waiting reservation.
func (r *Reservation) Approve() error {
	if r.Status != ReservationWaiting {
		return fmt.Errorf("%w: reservation_id=%d status=%s", ErrReservationCancelNotAllowed, r.ID, r.Status)
	}
	r.Status = ReservationCompleted
	r.UpdatedAt = time.Now()
	return nil
}

// Reject refuses a waiting reservation. Terminal.
func (r *Reservation) Reject() error {
	if r.Status != ReservationWaiting {
		return fmt.Errorf("%w: reservation_id=%d status=%s", ErrReservationCancelNotAllowed, r.ID, r.Status)
	}
	r.Status = ReservationRejected
	r.UpdatedAt = time.Now()
	return nil
}

// RequestChange asks to move the reservation to a new date.
func (r *Reservation) RequestChange(newDate time.Time) error {
	if r.Status != ReservationWaiting && r.Status != ReservationCompleted {
		return fmt.Errorf("%w: reservation_id=%d status=%s", ErrReservationCancelNotAllowed, r.ID, r.Status)
	}
	r.Status = ReservationChangeRequest
	r.ChangeDate = &newDate
	r.UpdatedAt = time.Now()
	return nil
}

// ApproveChange re-confirms the reservation on the requested date.
func (r *Reservation) ApproveChange() error {
	if r.Status != ReservationChangeRequest || r.ChangeDate == nil {
		return fmt.Errorf("%w: reservation_id=%d", ErrReservationChangeNotRequested, r.ID)
	}
	r.ReservationDate = *r.ChangeDate
	r.ChangeDate = nil
	r.Status = ReservationCompleted
	r.UpdatedAt = time.Now()
	return nil
}

// RefuseChange reverts a pending change request to the confirmed state.
func (r *Reservation) RefuseChange() error {
	if r.Status != ReservationChangeRequest {
		return fmt.Errorf("%w: reservation_id=%d", ErrReservationChangeNotRequested, r.ID)
	}
	r.ChangeDate = nil
	r.Status = ReservationCompleted
	r.UpdatedAt = time.Now()
	return nil
}
