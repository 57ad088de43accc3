package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeReservationRepository struct {
	reservations map[int64]*Reservation
	saveErr      error
}

func newFakeReservationRepository(reservations ...*Reservation) *fakeReservationRepository {
	repo := &fakeReservationRepository{reservations: map[int64]*Reservation{}}
	for _, r := range reservations {
		repo.reservations[r.ID] = r
	}
	return repo
}

func (f *fakeReservationRepository) Save(_ context.Context, reservation *Reservation) (*Reservation, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (f *fakeReservationRepository) GetByID(_ context.Context, id int64) (*Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return r, nil
}

type fakeSessionRepository struct {
	sessions map[int64]*Session // keyed by reservation ID
	saveErr  error
}

func newFakeSessionRepository(sessions ...*Session) *fakeSessionRepository {
	repo := &fakeSessionRepository{sessions: map[int64]*Session{}}
	for _, s := range sessions {
		repo.sessions[s.ReservationID] = s
	}
	return repo
}

func (f *fakeSessionRepository) Save(_ context.Context, session *Session) (*Session, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.sessions[session.ReservationID] = session
	return session, nil
}

func (f *fakeSessionRepository) GetByReservationID(_ context.Context, reservationID int64) (*Session, error) {
	s, ok := f.sessions[reservationID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func waitingReservation(id int64) *Reservation {
	r := NewReservation(100, 200, 300, time.Now().Add(24*time.Hour), 0)
	r.ID = id
	return r
}

func TestCancelDispatcher_TrainerCancelsBoth(t *testing.T) {
	reservation := waitingReservation(1)
	session := NewSession(1)
	session.ID = 11

	reservations := newFakeReservationRepository(reservation)
	sessions := newFakeSessionRepository(session)
	dispatcher := NewCancelDispatcher(reservations, sessions)

	got, err := dispatcher.Cancel(context.Background(), CancelCommand{
		ReservationID: 1,
		Role:          RoleTrainer,
		Reason:        "일정 변경",
		Date:          time.Now(),
	})

	assert.NoError(t, err)
	assert.Equal(t, ReservationCancelled, got.Status)
	assert.True(t, got.ApprovedCancel)
	assert.Equal(t, "일정 변경", got.CancelReason)
	assert.Equal(t, SessionCancelled, sessions.sessions[1].Status)
	assert.Equal(t, "일정 변경", sessions.sessions[1].CancelReason)
}

func TestCancelDispatcher_MemberRecordsRequest(t *testing.T) {
	reservation := waitingReservation(1)
	session := NewSession(1)

	reservations := newFakeReservationRepository(reservation)
	sessions := newFakeSessionRepository(session)
	dispatcher := NewCancelDispatcher(reservations, sessions)

	got, err := dispatcher.Cancel(context.Background(), CancelCommand{
		ReservationID: 1,
		Role:          RoleMember,
		Reason:        "personal reasons",
		Date:          time.Now(),
	})

	assert.NoError(t, err)
	assert.Equal(t, ReservationChangeRequest, got.Status)
	assert.False(t, got.ApprovedCancel)
	// The member path never touches the session.
	assert.Equal(t, SessionWaiting, sessions.sessions[1].Status)
}

func TestCancelDispatcher_UnsupportedRole(t *testing.T) {
	dispatcher := NewCancelDispatcher(newFakeReservationRepository(), newFakeSessionRepository())

	_, err := dispatcher.Cancel(context.Background(), CancelCommand{
		ReservationID: 1,
		Role:          CancellerRole("ADMIN"),
	})

	assert.ErrorIs(t, err, ErrUnsupportedCancellerRole)
}

func TestCancelDispatcher_ReservationNotFound(t *testing.T) {
	dispatcher := NewCancelDispatcher(newFakeReservationRepository(), newFakeSessionRepository())

	_, err := dispatcher.Cancel(context.Background(), CancelCommand{
		ReservationID: 42,
		Role:          RoleTrainer,
	})

	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCancelDispatcher_TrainerMissingSession(t *testing.T) {
	reservation := waitingReservation(1)
	reservations := newFakeReservationRepository(reservation)
	dispatcher := NewCancelDispatcher(reservations, newFakeSessionRepository())

	_, err := dispatcher.Cancel(context.Background(), CancelCommand{
		ReservationID: 1,
		Role:          RoleTrainer,
		Reason:        "일정 변경",
	})

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCancelDispatcher_AlreadyCancelled(t *testing.T) {
	reservation := waitingReservation(1)
	reservation.Status = ReservationCancelled

	dispatcher := NewCancelDispatcher(newFakeReservationRepository(reservation), newFakeSessionRepository())

	for _, role := range []CancellerRole{RoleMember, RoleTrainer} {
		_, err := dispatcher.Cancel(context.Background(), CancelCommand{ReservationID: 1, Role: role})
		assert.ErrorIs(t, err, ErrReservationAlreadyCancel)
	}
}

func TestCancelDispatcher_PersistFailureWrapped(t *testing.T) {
	reservations := newFakeReservationRepository(waitingReservation(1))
	reservations.saveErr = assert.AnError
	dispatcher := NewCancelDispatcher(reservations, newFakeSessionRepository())

	_, err := dispatcher.Cancel(context.Background(), CancelCommand{
		ReservationID: 1,
		Role:          RoleMember,
		Reason:        "personal reasons",
	})

	assert.ErrorIs(t, err, ErrReservationCancelFailed)
}
