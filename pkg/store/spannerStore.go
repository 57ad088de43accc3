package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
)

type SpannerStore struct {
	client *spanner.Client
}

func NewSpannerStore(client *spanner.Client) *SpannerStore {
	return &SpannerStore{client: client}
}

func (s *SpannerStore) Save(ctx context.Context, record *OutboxRecord) (*OutboxRecord, error) {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `INSERT OR UPDATE INTO outbox (message_id, aggregate_type, aggregate_id, event_type, payload, event_status, retry_count, created_at, sent_at)
                  VALUES (@messageID, @aggregateType, @aggregateID, @eventType, @payload, @status, @retryCount, @createdAt, @sentAt)`,
			Params: map[string]interface{}{
				"messageID":     record.MessageID,
				"aggregateType": string(record.AggregateType),
				"aggregateID":   record.AggregateID,
				"eventType":     string(record.EventType),
				"payload":       record.Payload,
				"status":        string(record.Status),
				"retryCount":    int64(record.RetryCount),
				"createdAt":     record.CreatedAt,
				"sentAt":        record.SentAt,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *SpannerStore) GetByMessageID(ctx context.Context, messageID string) (*OutboxRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT message_id, aggregate_type, aggregate_id, event_type, payload, event_status, retry_count, created_at, sent_at
              FROM outbox WHERE message_id = @messageID`,
		Params: map[string]interface{}{"messageID": messageID},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: message_id=%s", ErrNotFound, messageID)
	}
	if err != nil {
		return nil, err
	}

	return scanSpannerRecord(row)
}

func (s *SpannerStore) ListRetryable(ctx context.Context) ([]OutboxRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT message_id, aggregate_type, aggregate_id, event_type, payload, event_status, retry_count, created_at, sent_at
              FROM outbox WHERE event_status = @status ORDER BY created_at ASC`,
		Params: map[string]interface{}{"status": string(StatusInit)},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var records []OutboxRecord
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		record, err := scanSpannerRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, nil
}

func (s *SpannerStore) CompareAndSetStatus(ctx context.Context, messageID string, from, to Status) (bool, error) {
	var swapped bool
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		var sentAt spanner.NullTime
		if to == StatusSendSuccess {
			sentAt = spanner.NullTime{Time: time.Now(), Valid: true}
		}
		stmt := spanner.Statement{
			SQL: `UPDATE outbox SET event_status = @to, sent_at = @sentAt WHERE message_id = @messageID AND event_status = @from`,
			Params: map[string]interface{}{
				"to":        string(to),
				"sentAt":    sentAt,
				"messageID": messageID,
				"from":      string(from),
			},
		}
		count, err := txn.Update(ctx, stmt)
		swapped = count > 0
		return err
	})
	return swapped, err
}

func (s *SpannerStore) IncrementRetryCount(ctx context.Context, messageID string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE outbox SET retry_count = retry_count + 1 WHERE message_id = @messageID`,
			Params: map[string]interface{}{
				"messageID": messageID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func scanSpannerRecord(row *spanner.Row) (*OutboxRecord, error) {
	var (
		record        OutboxRecord
		aggregateType string
		eventType     string
		status        string
		retryCount    int64
		sentAt        spanner.NullTime
	)
	if err := row.Columns(
		&record.MessageID,
		&aggregateType,
		&record.AggregateID,
		&eventType,
		&record.Payload,
		&status,
		&retryCount,
		&record.CreatedAt,
		&sentAt); err != nil {
		return nil, err
	}

	record.AggregateType = AggregateType(aggregateType)
	record.EventType = EventType(eventType)
	record.Status = Status(status)
	record.RetryCount = int(retryCount)
	if sentAt.Valid {
		record.SentAt = &sentAt.Time
	}

	return &record, nil
}
