package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
)

type MongoStore struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (m *MongoStore) coll() *mongo.Collection {
	return m.client.Database(m.database).Collection(m.collection)
}

func (m *MongoStore) Save(ctx context.Context, record *OutboxRecord) (*OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxSave")
	defer span.End()

	start := time.Now()

	filter := bson.M{"message_id": record.MessageID}
	update := bson.M{"$set": bson.M{
		"aggregate_type": record.AggregateType,
		"aggregate_id":   record.AggregateID,
		"event_type":     record.EventType,
		"payload":        record.Payload,
		"event_status":   record.Status,
		"retry_count":    record.RetryCount,
		"created_at":     record.CreatedAt,
		"sent_at":        record.SentAt,
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.coll().UpdateOne(ctx, filter, update, opts); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "OutboxSave", 1, time.Since(start))

	return record, nil
}

func (m *MongoStore) GetByMessageID(ctx context.Context, messageID string) (*OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxGetByMessageID")
	defer span.End()

	var doc outboxDoc
	err := m.coll().FindOne(ctx, bson.M{"message_id": messageID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: message_id=%s", ErrNotFound, messageID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return doc.toRecord(), nil
}

func (m *MongoStore) ListRetryable(ctx context.Context) ([]OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxListRetryable")
	defer span.End()

	start := time.Now()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.coll().Find(ctx, bson.M{"event_status": StatusInit}, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []OutboxRecord
	for cursor.Next(ctx) {
		var doc outboxDoc
		if err := cursor.Decode(&doc); err != nil {
			span.RecordError(err)
			return nil, err
		}
		records = append(records, *doc.toRecord())
	}

	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "OutboxListRetryable", len(records), time.Since(start))

	return records, nil
}

func (m *MongoStore) CompareAndSetStatus(ctx context.Context, messageID string, from, to Status) (bool, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxCompareAndSetStatus")
	defer span.End()

	set := bson.M{"event_status": to}
	if to == StatusSendSuccess {
		set["sent_at"] = time.Now()
	} else {
		set["sent_at"] = nil
	}

	res, err := m.coll().UpdateOne(ctx,
		bson.M{"message_id": messageID, "event_status": from},
		bson.M{"$set": set})
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return res.ModifiedCount > 0, nil
}

func (m *MongoStore) IncrementRetryCount(ctx context.Context, messageID string) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxIncrementRetryCount")
	defer span.End()

	_, err := m.coll().UpdateOne(ctx,
		bson.M{"message_id": messageID},
		bson.M{"$inc": bson.M{"retry_count": 1}})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// outboxDoc is the bson shape of an outbox record.
type outboxDoc struct {
	ID            int64      `bson:"outbox_id"`
	AggregateType string     `bson:"aggregate_type"`
	AggregateID   string     `bson:"aggregate_id"`
	MessageID     string     `bson:"message_id"`
	EventType     string     `bson:"event_type"`
	Payload       string     `bson:"payload"`
	Status        string     `bson:"event_status"`
	RetryCount    int        `bson:"retry_count"`
	CreatedAt     time.Time  `bson:"created_at"`
	SentAt        *time.Time `bson:"sent_at"`
}

func (d *outboxDoc) toRecord() *OutboxRecord {
	return &OutboxRecord{
		ID:            d.ID,
		AggregateType: AggregateType(d.AggregateType),
		AggregateID:   d.AggregateID,
		MessageID:     d.MessageID,
		EventType:     EventType(d.EventType),
		Payload:       d.Payload,
		Status:        Status(d.Status),
		RetryCount:    d.RetryCount,
		CreatedAt:     d.CreatedAt,
		SentAt:        d.SentAt,
	}
}
