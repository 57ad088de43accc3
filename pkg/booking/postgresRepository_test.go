package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestReservationSave_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	reservation := NewReservation(100, 200, 300, time.Now().Add(24*time.Hour), 0)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO reservation`)).
		WithArgs(sqlmock.AnyArg(), reservation.TrainerID, reservation.SessionInfoID,
			reservation.Status, reservation.ReservationDate, nil, "", false, 0, false, false,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id"}).AddRow(int64(5)))

	repo := NewPostgresReservationRepository(db)
	saved, err := repo.Save(context.Background(), reservation)

	assert.NoError(t, err)
	assert.Equal(t, int64(5), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationSave_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	reservation := NewReservation(100, 200, 300, time.Now(), 0)
	reservation.ID = 5
	assert.NoError(t, reservation.Cancel("일정 변경", time.Now()))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE reservation SET`)).
		WithArgs(ReservationCancelled, reservation.ReservationDate, nil, "일정 변경", true,
			sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresReservationRepository(db)
	_, err = repo.Save(context.Background(), reservation)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now()
	sessionInfoID := int64(300)
	rows := sqlmock.NewRows([]string{
		"reservation_id", "member_id", "trainer_id", "session_info_id", "status",
		"reservation_date", "change_date", "cancel_reason", "approved_cancel",
		"priority", "is_fixed", "is_day_off", "created_at", "updated_at",
	}).AddRow(int64(5), int64(100), int64(200), sessionInfoID, string(ReservationWaiting),
		now, nil, "", false, 0, false, false, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT reservation_id, member_id, trainer_id`)).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	repo := NewPostgresReservationRepository(db)
	reservation, err := repo.GetByID(context.Background(), 5)

	assert.NoError(t, err)
	assert.Equal(t, int64(100), reservation.MemberID)
	assert.Equal(t, ReservationWaiting, reservation.Status)
	assert.Equal(t, sessionInfoID, *reservation.SessionInfoID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT reservation_id`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id"}))

	repo := NewPostgresReservationRepository(db)
	_, err = repo.GetByID(context.Background(), 42)

	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestSessionSave_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	session := NewSession(5)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO session`)).
		WithArgs(int64(5), SessionWaiting, "", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow(int64(11)))

	repo := NewPostgresSessionRepository(db)
	saved, err := repo.Save(context.Background(), session)

	assert.NoError(t, err)
	assert.Equal(t, int64(11), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionGetByReservationID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT session_id, reservation_id`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

	repo := NewPostgresSessionRepository(db)
	_, err = repo.GetByReservationID(context.Background(), 42)

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeductSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE session_info SET remaining_count = remaining_count - 1`)).
		WithArgs(int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewPostgresSessionInfoService(db)
	assert.NoError(t, svc.DeductSession(context.Background(), 300))
	assert.NoError(t, mock.ExpectationsWereMet())
}
