package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitbook/booking-core/pkg/store"
)

func stageRecords(t *testing.T, outbox *memoryOutboxStore, messageIDs ...string) {
	t.Helper()
	publisher := NewPublisher(outbox, &recordingBroker{failAll: true}, testSettings())
	for i, messageID := range messageIDs {
		assert.NoError(t, publisher.Stage(context.Background(), testEvent(int64(i+1), messageID)))
	}
}

func TestSweep(t *testing.T) {
	outbox := newMemoryOutboxStore()
	stageRecords(t, outbox, "m1", "m2")

	messageBroker := &recordingBroker{}
	sweeper := NewSweeper(outbox, messageBroker, testSettings())

	assert.NoError(t, sweeper.Sweep(context.Background()))

	for _, messageID := range []string{"m1", "m2"} {
		record, err := outbox.GetByMessageID(context.Background(), messageID)
		assert.NoError(t, err)
		assert.Equal(t, store.StatusSendSuccess, record.Status)
		assert.Equal(t, 1, record.RetryCount)
	}
	assert.Len(t, messageBroker.sent, 2)
	// Oldest first.
	assert.Equal(t, "m1", messageBroker.sent[0].headers["message_id"])
	assert.Equal(t, "m2", messageBroker.sent[1].headers["message_id"])
}

func TestSweep_PartialFailure(t *testing.T) {
	outbox := newMemoryOutboxStore()
	stageRecords(t, outbox, "m1", "m2")

	// m1 routes on reservation id 1, m2 on 2; only m1 fails.
	messageBroker := &recordingBroker{failFor: map[string]bool{"1": true}}
	sweeper := NewSweeper(outbox, messageBroker, testSettings())

	assert.NoError(t, sweeper.Sweep(context.Background()))

	failed, err := outbox.GetByMessageID(context.Background(), "m1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusInit, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)

	sent, err := outbox.GetByMessageID(context.Background(), "m2")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusSendSuccess, sent.Status)
	assert.Equal(t, 1, sent.RetryCount)
	assert.Len(t, messageBroker.sent, 1)
}

func TestSweep_ExhaustsRetryBudget(t *testing.T) {
	outbox := newMemoryOutboxStore()
	stageRecords(t, outbox, "m1")

	sweeper := NewSweeper(outbox, &recordingBroker{failAll: true}, testSettings())

	for i := 1; i <= 3; i++ {
		assert.NoError(t, sweeper.Sweep(context.Background()))

		record, err := outbox.GetByMessageID(context.Background(), "m1")
		assert.NoError(t, err)
		assert.Equal(t, store.StatusInit, record.Status)
		assert.Equal(t, i, record.RetryCount)
	}

	// The next pass finds the budget spent and goes terminal.
	assert.NoError(t, sweeper.Sweep(context.Background()))

	record, err := outbox.GetByMessageID(context.Background(), "m1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusSendFail, record.Status)
	assert.Equal(t, 3, record.RetryCount)

	// Terminal records never re-enter the sweep.
	assert.NoError(t, sweeper.Sweep(context.Background()))
	record, err = outbox.GetByMessageID(context.Background(), "m1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusSendFail, record.Status)
	assert.Equal(t, 3, record.RetryCount)
}

func TestSweep_SkipsClaimedRecord(t *testing.T) {
	outbox := newMemoryOutboxStore()
	stageRecords(t, outbox, "m1")

	// Another worker claims the record between ListRetryable and the
	// compare-and-set.
	claiming := &claimingStore{memoryOutboxStore: outbox}
	messageBroker := &recordingBroker{}
	sweeper := NewSweeper(claiming, messageBroker, testSettings())

	assert.NoError(t, sweeper.Sweep(context.Background()))

	record, err := outbox.GetByMessageID(context.Background(), "m1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusSendSuccess, record.Status)
	assert.Zero(t, record.RetryCount)
	assert.Empty(t, messageBroker.sent)
}

func TestSweep_SendSuccessNotRetried(t *testing.T) {
	outbox := newMemoryOutboxStore()
	stageRecords(t, outbox, "m1")

	publisher := NewPublisher(outbox, &recordingBroker{}, testSettings())
	assert.NoError(t, publisher.Publish(context.Background(), "m1"))

	messageBroker := &recordingBroker{}
	sweeper := NewSweeper(outbox, messageBroker, testSettings())
	assert.NoError(t, sweeper.Sweep(context.Background()))

	assert.Empty(t, messageBroker.sent)
}

// claimingStore flips the stored record to SEND_SUCCESS when it is listed, so
// the sweeper's subsequent compare-and-set loses.
type claimingStore struct {
	*memoryOutboxStore
}

func (c *claimingStore) ListRetryable(ctx context.Context) ([]store.OutboxRecord, error) {
	records, err := c.memoryOutboxStore.ListRetryable(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		c.memoryOutboxStore.records[records[i].MessageID].Status = store.StatusSendSuccess
	}
	return records, nil
}
