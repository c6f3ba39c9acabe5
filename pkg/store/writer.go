package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
)

// PublishError means the outbox insert could not happen. The enclosing
// business transaction must abort: the projection pipeline is a
// guarantee of the write path, not best-effort, so an event that cannot
// be recorded must fail the mutation it describes.
type PublishError struct {
	EventType event.Type
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.EventType, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Execer is the slice of *sql.Tx the writer needs. Callers hand in
// their open transaction so the record commits or rolls back with the
// domain mutation.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertRecordSQL = `INSERT INTO outbox
	(id, aggregate_type, event_type, payload_type, aggregate_id, occurred_on, payload, status, updated_at, retry_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Writer appends outbox records inside the caller's transaction. It
// performs no network I/O of its own.
type Writer struct {
	logger *zap.Logger
}

func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

// Publish serializes fact and inserts one pending record as part of tx.
// An unknown event type or a serialization failure returns a
// *PublishError; the caller must roll back.
func (w *Writer) Publish(ctx context.Context, tx Execer, eventType event.Type, aggregateID string, fact any) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "OutboxPublish")
	defer span.End()

	if !event.Known(eventType) {
		err := &PublishError{EventType: eventType, Err: fmt.Errorf("%w: %q", event.ErrUnknownEventType, eventType)}
		span.RecordError(err)
		return err
	}

	payload, err := json.Marshal(fact)
	if err != nil {
		perr := &PublishError{EventType: eventType, Err: err}
		span.RecordError(perr)
		return perr
	}

	record, err := NewRecord(eventType, aggregateID, fmt.Sprintf("%T", fact), payload)
	if err != nil {
		return &PublishError{EventType: eventType, Err: err}
	}

	span.SetAttributes(
		attribute.String("event.id", record.ID),
		attribute.String("event.type", string(record.EventType)),
		attribute.String("event.aggregate_id", record.AggregateID),
	)

	_, err = tx.ExecContext(ctx, insertRecordSQL,
		record.ID,
		record.AggregateType,
		record.EventType,
		record.PayloadType,
		record.AggregateID,
		record.OccurredOn,
		record.Payload,
		record.Status,
		record.UpdatedAt,
		record.RetryCount,
	)
	if err != nil {
		perr := &PublishError{EventType: eventType, Err: err}
		span.RecordError(perr)
		return perr
	}

	w.logger.Debug("outbox record written",
		zap.String("record_id", record.ID),
		zap.String("event_type", string(eventType)),
		zap.String("aggregate_id", aggregateID),
	)
	return nil
}
