package projection

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MongoStore keeps one projection family in a MongoDB collection, one
// document per target id.
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

func (s *MongoStore) Get(ctx context.Context, targetID string) (*Projection, error) {
	ctx, span := s.startSpan(ctx, "ProjectionGet", targetID)
	defer span.End()

	var doc Projection
	err := s.coll().FindOne(ctx, bson.M{"_id": targetID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) Put(ctx context.Context, targetID string, p *Projection) error {
	ctx, span := s.startSpan(ctx, "ProjectionPut", targetID)
	defer span.End()

	start := time.Now()
	_, err := s.coll().ReplaceOne(ctx, bson.M{"_id": targetID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Float64("db.execution_time_ms", float64(time.Since(start).Milliseconds())))
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, targetID string) error {
	ctx, span := s.startSpan(ctx, "ProjectionDelete", targetID)
	defer span.End()

	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": targetID})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) coll() *mongo.Collection {
	return s.client.Database(s.database).Collection(s.collection)
}

func (s *MongoStore) startSpan(ctx context.Context, name, targetID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("go-projection")
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.mongodb.collection", s.collection),
		attribute.String("projection.target_id", targetID),
	))
}
