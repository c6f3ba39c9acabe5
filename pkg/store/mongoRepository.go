package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
)

type MongoRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoRepository(client *mongo.Client, database, collection string) *MongoRepository {
	return &MongoRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (m *MongoRepository) FetchPending(ctx context.Context, batchSize int) ([]OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "FetchPending")
	defer span.End()

	startTime := time.Now()

	collection := m.client.Database(m.database).Collection(m.collection)
	filter := bson.M{
		"$or": []bson.M{
			{"status": StatusPending},
			{"status": StatusProcessing, "updated_at": bson.M{"$lt": time.Now().Add(-lockExpiration)}},
		},
	}
	opts := options.Find().SetLimit(int64(batchSize)).SetSort(bson.D{{Key: "occurred_on", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []OutboxRecord
	for cursor.Next(ctx) {
		var record OutboxRecord
		if err := cursor.Decode(&record); err != nil {
			span.RecordError(err)
			return nil, err
		}
		records = append(records, record)
	}

	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Claim the fetched records so concurrent relays skip them.
	for i := range records {
		if err := m.setStatus(ctx, records[i].ID, StatusProcessing, ""); err != nil {
			return nil, err
		}
		records[i].Status = StatusProcessing
	}

	addDBStatsToSpan(span, "FetchPending", len(records), time.Since(startTime))

	return records, nil
}

func (m *MongoRepository) MarkPublished(ctx context.Context, recordID string) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "MarkPublished")
	defer span.End()

	startTime := time.Now()

	collection := m.client.Database(m.database).Collection(m.collection)
	filter := bson.M{"id": recordID}
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":       StatusPublished,
			"processed_at": now,
			"updated_at":   now,
		},
	}
	if _, err := collection.UpdateOne(ctx, filter, update); err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, "MarkPublished", 1, time.Since(startTime))

	return nil
}

func (m *MongoRepository) MarkFailed(ctx context.Context, recordID string, lastErr string) error {
	return m.setStatus(ctx, recordID, StatusFailed, lastErr)
}

func (m *MongoRepository) MarkCanceled(ctx context.Context, recordID string, reason string) error {
	return m.setStatus(ctx, recordID, StatusCanceled, reason)
}

func (m *MongoRepository) IncrementRetryCount(ctx context.Context, recordID string) error {
	collection := m.client.Database(m.database).Collection(m.collection)
	filter := bson.M{"id": recordID}
	update := bson.M{
		"$inc": bson.M{"retry_count": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err := collection.UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoRepository) setStatus(ctx context.Context, recordID string, status Status, errorMessage string) error {
	collection := m.client.Database(m.database).Collection(m.collection)
	filter := bson.M{"id": recordID}
	// updated_at is the claim timestamp the stale-PROCESSING reclaim
	// keys on; every status change refreshes it.
	update := bson.M{
		"$set": bson.M{
			"status":        status,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		},
	}
	_, err := collection.UpdateOne(ctx, filter, update)
	return err
}
