package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOutboxRecord(t *testing.T) {
	record := NewOutboxRecord(AggregateReservation, "42", "m1", EventFixedReservationGenerate, `{"reservationId":42}`)

	assert.Equal(t, StatusInit, record.Status)
	assert.Equal(t, "m1", record.MessageID)
	assert.Equal(t, "42", record.AggregateID)
	assert.Equal(t, 0, record.RetryCount)
	assert.Nil(t, record.SentAt)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestEnsurePublishable(t *testing.T) {
	tests := []struct {
		name        string
		status      Status
		expectedErr error
	}{
		{name: "init is publishable", status: StatusInit, expectedErr: nil},
		{name: "send success is terminal", status: StatusSendSuccess, expectedErr: ErrAlreadyDone},
		{name: "send fail is terminal", status: StatusSendFail, expectedErr: ErrAlreadyFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := NewOutboxRecord(AggregateReservation, "1", "m1", EventFixedReservationGenerate, "{}")
			record.Status = tt.status

			err := record.EnsurePublishable()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestMarkSent(t *testing.T) {
	record := NewOutboxRecord(AggregateReservation, "1", "m1", EventFixedReservationGenerate, "{}")

	now := time.Now()
	assert.NoError(t, record.MarkSent(now))
	assert.Equal(t, StatusSendSuccess, record.Status)
	assert.Equal(t, now, *record.SentAt)

	// Terminal records reject a second publish.
	assert.ErrorIs(t, record.MarkSent(now), ErrAlreadyDone)
}

func TestRestore(t *testing.T) {
	record := NewOutboxRecord(AggregateReservation, "1", "m1", EventFixedReservationGenerate, "{}")
	assert.NoError(t, record.MarkSent(time.Now()))

	record.Restore()
	assert.Equal(t, StatusInit, record.Status)
	assert.Nil(t, record.SentAt)
	assert.NoError(t, record.EnsurePublishable())
}

func TestRetryExhausted(t *testing.T) {
	record := NewOutboxRecord(AggregateReservation, "1", "m1", EventFixedReservationGenerate, "{}")
	assert.False(t, record.RetryExhausted(3))

	record.RetryCount = 3
	assert.True(t, record.RetryExhausted(3))
}
