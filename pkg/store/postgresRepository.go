package store

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
)

type PostgresRepository struct {
	Db *sql.DB // using database/sql
}

type txKey struct{}

func (p *PostgresRepository) FetchPending(ctx context.Context, batchSize int) ([]OutboxRecord, error) {
	return p.withTransaction(ctx, "FetchPending", func(ctx context.Context, tx *sql.Tx) ([]OutboxRecord, error) {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, aggregate_type, event_type, payload_type, aggregate_id, occurred_on, payload, retry_count FROM outbox
             WHERE (status=$1 OR (status=$2 AND updated_at < $3))
             ORDER BY occurred_on, id
             FOR UPDATE SKIP LOCKED LIMIT $4`,
			StatusPending, StatusProcessing, time.Now().Add(-lockExpiration), batchSize)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var records []OutboxRecord
		for rows.Next() {
			var record OutboxRecord
			if err := rows.Scan(
				&record.ID,
				&record.AggregateType,
				&record.EventType,
				&record.PayloadType,
				&record.AggregateID,
				&record.OccurredOn,
				&record.Payload,
				&record.RetryCount,
			); err != nil {
				return nil, err
			}
			records = append(records, record)
		}

		if err := rows.Err(); err != nil {
			return nil, err
		}

		// Claim the fetched records so concurrent relays skip them.
		for i := range records {
			if err := p.setStatus(ctx, records[i].ID, StatusProcessing, ""); err != nil {
				return nil, err
			}
			records[i].Status = StatusProcessing
		}

		return records, nil
	})
}

func (p *PostgresRepository) MarkPublished(ctx context.Context, recordID string) error {
	_, err := p.withTransaction(ctx, "MarkPublished", func(ctx context.Context, tx *sql.Tx) ([]OutboxRecord, error) {
		now := time.Now()
		_, err := tx.ExecContext(ctx,
			`UPDATE outbox SET status=$1, processed_at=$2, updated_at=$3 WHERE id=$4`,
			StatusPublished, now, now, recordID)
		return nil, err
	})
	return err
}

func (p *PostgresRepository) MarkFailed(ctx context.Context, recordID string, lastErr string) error {
	_, err := p.withTransaction(ctx, "MarkFailed", func(ctx context.Context, tx *sql.Tx) ([]OutboxRecord, error) {
		return nil, p.setStatus(ctx, recordID, StatusFailed, lastErr)
	})
	return err
}

func (p *PostgresRepository) MarkCanceled(ctx context.Context, recordID string, reason string) error {
	_, err := p.withTransaction(ctx, "MarkCanceled", func(ctx context.Context, tx *sql.Tx) ([]OutboxRecord, error) {
		return nil, p.setStatus(ctx, recordID, StatusCanceled, reason)
	})
	return err
}

func (p *PostgresRepository) IncrementRetryCount(ctx context.Context, recordID string) error {
	_, err := p.withTransaction(ctx, "IncrementRetryCount", func(ctx context.Context, tx *sql.Tx) ([]OutboxRecord, error) {
		_, err := tx.ExecContext(ctx,
			`UPDATE outbox SET retry_count = retry_count + 1, updated_at=$1 WHERE id=$2`,
			time.Now(), recordID)
		return nil, err
	})
	return err
}

func (p *PostgresRepository) setStatus(ctx context.Context, recordID string, status Status, errorMessage string) error {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	if !ok {
		return sql.ErrTxDone
	}
	// updated_at is the claim timestamp: the stale-PROCESSING reclaim in
	// FetchPending keys on it, so every status change must refresh it.
	_, err := tx.ExecContext(ctx,
		`UPDATE outbox SET status=$1, error_message=$2, updated_at=$3 WHERE id=$4`,
		status, errorMessage, time.Now(), recordID)
	return err
}

func (p *PostgresRepository) withTransaction(ctx context.Context, spanName string, fn func(ctx context.Context, tx *sql.Tx) ([]OutboxRecord, error)) ([]OutboxRecord, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()

	var err error
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	if !ok {
		tx, err = p.Db.BeginTx(ctx, nil)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		defer func() {
			if err != nil {
				tx.Rollback()
			} else {
				tx.Commit()
			}
		}()
		ctx = context.WithValue(ctx, txKey{}, tx)
	}

	var records []OutboxRecord
	records, err = fn(ctx, tx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, spanName, len(records), time.Since(start))

	return records, nil
}
