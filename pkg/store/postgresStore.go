package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every store method can
// join a transaction carried by the context.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	Db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{Db: db}
}

func (p *PostgresStore) conn(ctx context.Context) querier {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return p.Db
}

func (p *PostgresStore) Save(ctx context.Context, record *OutboxRecord) (*OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxSave")
	defer span.End()

	start := time.Now()

	if record.ID == 0 {
		err := p.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO outbox (aggregate_type, aggregate_id, message_id, event_type, payload, event_status, retry_count, created_at, sent_at)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING outbox_id`,
			record.AggregateType, record.AggregateID, record.MessageID, record.EventType,
			record.Payload, record.Status, record.RetryCount, record.CreatedAt, record.SentAt,
		).Scan(&record.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	} else {
		_, err := p.conn(ctx).ExecContext(ctx,
			`UPDATE outbox SET event_status=$1, retry_count=$2, sent_at=$3 WHERE outbox_id=$4`,
			record.Status, record.RetryCount, record.SentAt, record.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	addDBStatsToSpan(span, "OutboxSave", 1, time.Since(start))

	return record, nil
}

func (p *PostgresStore) GetByMessageID(ctx context.Context, messageID string) (*OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxGetByMessageID")
	defer span.End()

	var record OutboxRecord
	err := p.conn(ctx).QueryRowContext(ctx,
		`SELECT outbox_id, aggregate_type, aggregate_id, message_id, event_type, payload, event_status, retry_count, created_at, sent_at
         FROM outbox WHERE message_id=$1`, messageID).
		Scan(&record.ID, &record.AggregateType, &record.AggregateID, &record.MessageID,
			&record.EventType, &record.Payload, &record.Status, &record.RetryCount,
			&record.CreatedAt, &record.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message_id=%s", ErrNotFound, messageID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &record, nil
}

func (p *PostgresStore) ListRetryable(ctx context.Context) ([]OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxListRetryable")
	defer span.End()

	start := time.Now()

	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT outbox_id, aggregate_type, aggregate_id, message_id, event_type, payload, event_status, retry_count, created_at, sent_at
         FROM outbox WHERE event_status=$1 ORDER BY created_at ASC`, StatusInit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var record OutboxRecord
		if err := rows.Scan(&record.ID, &record.AggregateType, &record.AggregateID, &record.MessageID,
			&record.EventType, &record.Payload, &record.Status, &record.RetryCount,
			&record.CreatedAt, &record.SentAt); err != nil {
			span.RecordError(err)
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "OutboxListRetryable", len(records), time.Since(start))

	return records, nil
}

func (p *PostgresStore) CompareAndSetStatus(ctx context.Context, messageID string, from, to Status) (bool, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxCompareAndSetStatus")
	defer span.End()

	var sentAt any
	if to == StatusSendSuccess {
		sentAt = time.Now()
	}

	res, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE outbox SET event_status=$1, sent_at=$2 WHERE message_id=$3 AND event_status=$4`,
		to, sentAt, messageID, from)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return affected > 0, nil
}

func (p *PostgresStore) IncrementRetryCount(ctx context.Context, messageID string) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxIncrementRetryCount")
	defer span.End()

	_, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1 WHERE message_id=$1`, messageID)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
