package booking

import "errors"

var (
	// ErrReservationCancelFailed is returned when persisting a cancellation
	// did not complete.
	ErrReservationCancelFailed = errors.New("reservation cancel failed")
	// ErrReservationAlreadyCancel is returned when cancelling a reservation
	// that is already cancelled.
	ErrReservationAlreadyCancel = errors.New("reservation is already cancelled")
	// ErrReservationCancelNotAllowed is returned when cancelling from a state
	// that does not permit cancellation.
	ErrReservationCancelNotAllowed = errors.New("reservation cancel not allowed")
	// ErrReservationChangeNotRequested is returned when approving or refusing
	// a change on a reservation that has no pending change request.
	ErrReservationChangeNotRequested = errors.New("reservation has no change request")

	// ErrSessionAlreadyCancel is returned when cancelling a session that is
	// already cancelled.
	ErrSessionAlreadyCancel = errors.New("session is already cancelled")
	// ErrSessionAlreadyEnd is returned when cancelling a session that has
	// already ended (completed or not attended).
	ErrSessionAlreadyEnd = errors.New("session is already ended")
	// ErrSessionNotFound indicates the paired session could not be located;
	// a data-integrity error.
	ErrSessionNotFound = errors.New("session is not found")

	// ErrReservationNotFound is returned when a reservation id resolves to
	// nothing.
	ErrReservationNotFound = errors.New("reservation is not found")
	// ErrUnsupportedCancellerRole indicates a cancellation was dispatched for
	// a role outside the closed trainer/member set. This is a programming
	// error and never a silent no-op.
	ErrUnsupportedCancellerRole = errors.New("unsupported canceller role")
)
