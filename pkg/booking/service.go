package booking

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitbook/booking-core/pkg/store"
)

// Service owns the reservation lifecycle: creating fixed reservations (and
// staging their follow-up events through the transactional outbox),
// dispatching cancellations, resolving change requests and completing
// sessions.
type Service struct {
	reservations ReservationRepository
	sessions     SessionRepository
	sessionInfo  SessionInfoService
	dispatcher   *CancelDispatcher
	outbox       EventWriter
	tx           *store.TxManager
	tracer       trace.Tracer
}

func NewService(
	reservations ReservationRepository,
	sessions SessionRepository,
	sessionInfo SessionInfoService,
	outbox EventWriter,
	tx *store.TxManager,
) *Service {
	return &Service{
		reservations: reservations,
		sessions:     sessions,
		sessionInfo:  sessionInfo,
		dispatcher:   NewCancelDispatcher(reservations, sessions),
		outbox:       outbox,
		tx:           tx,
		tracer:       otel.Tracer("booking-core"),
	}
}

// CreateFixedReservationRequest carries the data for booking a recurring
// slot.
type CreateFixedReservationRequest struct {
	MemberID      int64
	TrainerID     int64
	SessionInfoID int64
	MemberName    string
	Date          time.Time
}

// CreateFixedReservation books a recurring slot. The reservation, its
// session and the INIT outbox record for the 7-day follow-up event are
// written in one transaction; the publish step runs only after that
// transaction has committed.
func (s *Service) CreateFixedReservation(ctx context.Context, req CreateFixedReservationRequest) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "CreateFixedReservation",
		trace.WithAttributes(
			attribute.Int64("reservation.member_id", req.MemberID),
			attribute.Int64("reservation.trainer_id", req.TrainerID),
		))
	defer span.End()

	var (
		reservation *Reservation
		event       *FixedReservationEvent
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reservation, err = s.reservations.Save(ctx, NewFixedReservation(req.MemberID, req.TrainerID, req.SessionInfoID, req.Date))
		if err != nil {
			return err
		}

		if _, err = s.sessions.Save(ctx, NewSession(reservation.ID)); err != nil {
			return err
		}

		event = NewFixedReservationEvent(reservation, req.MemberName)
		return s.outbox.Stage(ctx, event)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// The business transaction is durable at this point; a publish failure
	// leaves the INIT record for the sweeper.
	if err := s.outbox.Publish(ctx, event.MessageID); err != nil {
		span.RecordError(err)
		log.Printf("Failed to publish fixed reservation event %s: %v", event.MessageID, err)
	}

	return reservation, nil
}

// MaterializeFixedReservation creates the next occurrence of a recurring
// reservation from a consumed broker event, staging the following week's
// event in the same transaction.
func (s *Service) MaterializeFixedReservation(ctx context.Context, ev *FixedReservationEvent) error {
	ctx, span := s.tracer.Start(ctx, "MaterializeFixedReservation",
		trace.WithAttributes(attribute.String("event.message_id", ev.MessageID)))
	defer span.End()

	var next *FixedReservationEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reservation, err := s.reservations.Save(ctx, NewFixedReservation(ev.MemberID, ev.TrainerID, ev.SessionInfoID, ev.ConfirmDate))
		if err != nil {
			return err
		}

		if _, err = s.sessions.Save(ctx, NewSession(reservation.ID)); err != nil {
			return err
		}

		next = NewFixedReservationEvent(reservation, ev.Name)
		return s.outbox.Stage(ctx, next)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.outbox.Publish(ctx, next.MessageID); err != nil {
		span.RecordError(err)
		log.Printf("Failed to publish fixed reservation event %s: %v", next.MessageID, err)
	}

	return nil
}

// Cancel applies the role-specific cancellation policy in one transaction.
// The trainer path's reservation and session writes commit atomically.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "CancelReservation",
		trace.WithAttributes(
			attribute.Int64("reservation.id", cmd.ReservationID),
			attribute.String("reservation.canceller_role", string(cmd.Role)),
		))
	defer span.End()

	var reservation *Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reservation, err = s.dispatcher.Cancel(ctx, cmd)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return reservation, nil
}

// ApproveCancelRequest finalizes a member's pending cancel request: the
// reservation becomes cancelled and the paired session is cancelled with the
// originally recorded reason, atomically.
func (s *Service) ApproveCancelRequest(ctx context.Context, reservationID int64) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "ApproveCancelRequest",
		trace.WithAttributes(attribute.Int64("reservation.id", reservationID)))
	defer span.End()

	var reservation *Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reservation, err = s.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := reservation.ApproveCancel(time.Now()); err != nil {
			return err
		}
		if _, err := s.reservations.Save(ctx, reservation); err != nil {
			return err
		}

		session, err := s.sessions.GetByReservationID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := session.Cancel(reservation.CancelReason); err != nil {
			return err
		}
		_, err = s.sessions.Save(ctx, session)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return reservation, nil
}

// ApproveChangeRequest re-confirms a reservation on its requested date.
func (s *Service) ApproveChangeRequest(ctx context.Context, reservationID int64) (*Reservation, error) {
	return s.resolveChange(ctx, "ApproveChangeRequest", reservationID, (*Reservation).ApproveChange)
}

// RefuseChangeRequest reverts a pending change request.
func (s *Service) RefuseChangeRequest(ctx context.Context, reservationID int64) (*Reservation, error) {
	return s.resolveChange(ctx, "RefuseChangeRequest", reservationID, (*Reservation).RefuseChange)
}

func (s *Service) resolveChange(ctx context.Context, op string, reservationID int64, resolve func(*Reservation) error) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, op,
		trace.WithAttributes(attribute.Int64("reservation.id", reservationID)))
	defer span.End()

	var reservation *Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reservation, err = s.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := resolve(reservation); err != nil {
			return err
		}
		_, err = s.reservations.Save(ctx, reservation)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return reservation, nil
}

// CompleteSession marks a reservation's session held and debits one unit
// from the member's remaining purchased-session count.
func (s *Service) CompleteSession(ctx context.Context, reservationID int64) error {
	ctx, span := s.tracer.Start(ctx, "CompleteSession",
		trace.WithAttributes(attribute.Int64("reservation.id", reservationID)))
	defer span.End()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reservation, err := s.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}

		session, err := s.sessions.GetByReservationID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := session.Complete(); err != nil {
			return err
		}
		if _, err := s.sessions.Save(ctx, session); err != nil {
			return err
		}

		if reservation.SessionInfoID == nil {
			return nil
		}
		return s.sessionInfo.DeductSession(ctx, *reservation.SessionInfoID)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// RegisterDayOff blocks a trainer's calendar slot with a reservation that
// carries no member or session reference.
func (s *Service) RegisterDayOff(ctx context.Context, trainerID int64, date time.Time) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "RegisterDayOff",
		trace.WithAttributes(attribute.Int64("reservation.trainer_id", trainerID)))
	defer span.End()

	var reservation *Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reservation, err = s.reservations.Save(ctx, NewDayOff(trainerID, date))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return reservation, nil
}
