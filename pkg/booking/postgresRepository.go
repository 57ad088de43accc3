package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fitbook/booking-core/pkg/store"
)

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresReservationRepository persists reservations with database/sql,
// joining any transaction carried by the context.
type PostgresReservationRepository struct {
	Db *sql.DB
}

func NewPostgresReservationRepository(db *sql.DB) *PostgresReservationRepository {
	return &PostgresReservationRepository{Db: db}
}

func (p *PostgresReservationRepository) conn(ctx context.Context) sqlConn {
	if tx, ok := store.TxFrom(ctx); ok {
		return tx
	}
	return p.Db
}

func (p *PostgresReservationRepository) Save(ctx context.Context, reservation *Reservation) (*Reservation, error) {
	tracer := otel.Tracer("booking-core")
	ctx, span := tracer.Start(ctx, "ReservationSave")
	defer span.End()

	reservation.UpdatedAt = time.Now()

	if reservation.ID == 0 {
		err := p.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO reservation (member_id, trainer_id, session_info_id, status, reservation_date, change_date, cancel_reason, approved_cancel, priority, is_fixed, is_day_off, created_at, updated_at)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING reservation_id`,
			nullableID(reservation.MemberID), reservation.TrainerID, reservation.SessionInfoID,
			reservation.Status, reservation.ReservationDate, reservation.ChangeDate,
			reservation.CancelReason, reservation.ApprovedCancel, reservation.Priority,
			reservation.IsFixed, reservation.IsDayOff, reservation.CreatedAt, reservation.UpdatedAt,
		).Scan(&reservation.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		return reservation, nil
	}

	_, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE reservation SET status=$1, reservation_date=$2, change_date=$3, cancel_reason=$4, approved_cancel=$5, updated_at=$6 WHERE reservation_id=$7`,
		reservation.Status, reservation.ReservationDate, reservation.ChangeDate,
		reservation.CancelReason, reservation.ApprovedCancel, reservation.UpdatedAt, reservation.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return reservation, nil
}

func (p *PostgresReservationRepository) GetByID(ctx context.Context, id int64) (*Reservation, error) {
	tracer := otel.Tracer("booking-core")
	ctx, span := tracer.Start(ctx, "ReservationGetByID")
	defer span.End()

	var (
		reservation Reservation
		memberID    sql.NullInt64
	)
	err := p.conn(ctx).QueryRowContext(ctx,
		`SELECT reservation_id, member_id, trainer_id, session_info_id, status, reservation_date, change_date, cancel_reason, approved_cancel, priority, is_fixed, is_day_off, created_at, updated_at
         FROM reservation WHERE reservation_id=$1`, id).
		Scan(&reservation.ID, &memberID, &reservation.TrainerID, &reservation.SessionInfoID,
			&reservation.Status, &reservation.ReservationDate, &reservation.ChangeDate,
			&reservation.CancelReason, &reservation.ApprovedCancel, &reservation.Priority,
			&reservation.IsFixed, &reservation.IsDayOff, &reservation.CreatedAt, &reservation.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation_id=%d", ErrReservationNotFound, id)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if memberID.Valid {
		reservation.MemberID = memberID.Int64
	}

	return &reservation, nil
}

// PostgresSessionRepository persists sessions with database/sql, joining any
// transaction carried by the context.
type PostgresSessionRepository struct {
	Db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{Db: db}
}

func (p *PostgresSessionRepository) conn(ctx context.Context) sqlConn {
	if tx, ok := store.TxFrom(ctx); ok {
		return tx
	}
	return p.Db
}

func (p *PostgresSessionRepository) Save(ctx context.Context, session *Session) (*Session, error) {
	tracer := otel.Tracer("booking-core")
	ctx, span := tracer.Start(ctx, "SessionSave")
	defer span.End()

	session.UpdatedAt = time.Now()

	if session.ID == 0 {
		err := p.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO session (reservation_id, status, cancel_reason, is_completed, created_at, updated_at)
             VALUES ($1, $2, $3, $4, $5, $6) RETURNING session_id`,
			session.ReservationID, session.Status, session.CancelReason,
			session.IsCompleted, session.CreatedAt, session.UpdatedAt,
		).Scan(&session.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		return session, nil
	}

	_, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE session SET status=$1, cancel_reason=$2, is_completed=$3, updated_at=$4 WHERE session_id=$5`,
		session.Status, session.CancelReason, session.IsCompleted, session.UpdatedAt, session.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return session, nil
}

func (p *PostgresSessionRepository) GetByReservationID(ctx context.Context, reservationID int64) (*Session, error) {
	tracer := otel.Tracer("booking-core")
	ctx, span := tracer.Start(ctx, "SessionGetByReservationID")
	defer span.End()

	var session Session
	err := p.conn(ctx).QueryRowContext(ctx,
		`SELECT session_id, reservation_id, status, cancel_reason, is_completed, created_at, updated_at
         FROM session WHERE reservation_id=$1`, reservationID).
		Scan(&session.ID, &session.ReservationID, &session.Status, &session.CancelReason,
			&session.IsCompleted, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation_id=%d", ErrSessionNotFound, reservationID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &session, nil
}

// PostgresSessionInfoService debits a member's remaining purchased-session
// count. The wider session-info bookkeeping lives in a collaborating
// service; this adapter only performs the one-unit deduction a completed
// session triggers.
type PostgresSessionInfoService struct {
	Db *sql.DB
}

func NewPostgresSessionInfoService(db *sql.DB) *PostgresSessionInfoService {
	return &PostgresSessionInfoService{Db: db}
}

func (p *PostgresSessionInfoService) conn(ctx context.Context) sqlConn {
	if tx, ok := store.TxFrom(ctx); ok {
		return tx
	}
	return p.Db
}

func (p *PostgresSessionInfoService) DeductSession(ctx context.Context, sessionInfoID int64) error {
	tracer := otel.Tracer("booking-core")
	ctx, span := tracer.Start(ctx, "DeductSession")
	defer span.End()

	_, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE session_info SET remaining_count = remaining_count - 1 WHERE session_info_id=$1 AND remaining_count > 0`,
		sessionInfoID)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
