package booking

import (
	"context"
	"fmt"
	"time"
)

// CancellerRole identifies who is cancelling a reservation. The set is
// closed: a reservation is only ever cancelled by its member or its trainer.
type CancellerRole string

const (
	RoleMember  CancellerRole = "MEMBER"
	RoleTrainer CancellerRole = "TRAINER"
)

// CancelCommand carries a cancellation request into the dispatcher.
type CancelCommand struct {
	ReservationID int64
	Role          CancellerRole
	Reason        string
	Date          time.Time
}

// cancelStrategy is the role-specific cancellation behavior. Implementations
// mutate the aggregate and persist whatever the role's policy touches; the
// dispatcher supplies the transaction.
type cancelStrategy interface {
	supports(role CancellerRole) bool
	cancel(ctx context.Context, reservation *Reservation, cmd CancelCommand) error
}

// memberCancelStrategy records the cancellation as a request pending trainer
// approval. The paired session is left untouched until the trainer decides.
type memberCancelStrategy struct {
	reservations ReservationRepository
}

func (s *memberCancelStrategy) supports(role CancellerRole) bool {
	return role == RoleMember
}

func (s *memberCancelStrategy) cancel(ctx context.Context, reservation *Reservation, cmd CancelCommand) error {
	if err := reservation.CancelRequest(cmd.Reason, cmd.Date); err != nil {
		return err
	}
	if _, err := s.reservations.Save(ctx, reservation); err != nil {
		return fmt.Errorf("%w: reservation_id=%d: %v", ErrReservationCancelFailed, reservation.ID, err)
	}
	return nil
}

// trainerCancelStrategy cancels immediately and unilaterally, synchronizing
// the reservation and its session in the same transaction.
type trainerCancelStrategy struct {
	reservations ReservationRepository
	sessions     SessionRepository
}

func (s *trainerCancelStrategy) supports(role CancellerRole) bool {
	return role == RoleTrainer
}

func (s *trainerCancelStrategy) cancel(ctx context.Context, reservation *Reservation, cmd CancelCommand) error {
	if err := reservation.Cancel(cmd.Reason, cmd.Date); err != nil {
		return err
	}
	if _, err := s.reservations.Save(ctx, reservation); err != nil {
		return fmt.Errorf("%w: reservation_id=%d: %v", ErrReservationCancelFailed, reservation.ID, err)
	}

	session, err := s.sessions.GetByReservationID(ctx, reservation.ID)
	if err != nil {
		return err
	}
	if err := session.Cancel(cmd.Reason); err != nil {
		return err
	}
	if _, err := s.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("%w: reservation_id=%d: %v", ErrReservationCancelFailed, reservation.ID, err)
	}
	return nil
}

// CancelDispatcher resolves the role-specific cancellation strategy and
// applies it inside one transaction supplied by the caller's Tx boundary.
type CancelDispatcher struct {
	member  *memberCancelStrategy
	trainer *trainerCancelStrategy

	reservations ReservationRepository
}

func NewCancelDispatcher(reservations ReservationRepository, sessions SessionRepository) *CancelDispatcher {
	return &CancelDispatcher{
		member:       &memberCancelStrategy{reservations: reservations},
		trainer:      &trainerCancelStrategy{reservations: reservations, sessions: sessions},
		reservations: reservations,
	}
}

// strategyFor picks the first strategy supporting the role. The set is fixed
// at construction, so an unmatched role is an explicit failure, never a
// silent no-op.
func (d *CancelDispatcher) strategyFor(role CancellerRole) (cancelStrategy, error) {
	for _, s := range []cancelStrategy{d.member, d.trainer} {
		if s.supports(role) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCancellerRole, role)
}

// Cancel loads the reservation and applies the role's cancellation policy.
// The caller is expected to run this inside a transaction; the trainer path's
// two writes must commit atomically.
func (d *CancelDispatcher) Cancel(ctx context.Context, cmd CancelCommand) (*Reservation, error) {
	strategy, err := d.strategyFor(cmd.Role)
	if err != nil {
		return nil, err
	}

	reservation, err := d.reservations.GetByID(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}

	if err := strategy.cancel(ctx, reservation, cmd); err != nil {
		return nil, err
	}

	return reservation, nil
}
