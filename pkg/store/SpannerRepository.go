package store

import (
	"context"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"

	"github.com/zoff-tech/go-projection/pkg/event"
)

type SpannerRepository struct {
	client *spanner.Client
}

func (s *SpannerRepository) FetchPending(ctx context.Context, batchSize int) ([]OutboxRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT id, aggregate_type, event_type, payload_type, aggregate_id, occurred_on, payload, retry_count FROM outbox
              WHERE (status = @statusPending OR (status = @statusProcessing AND updated_at < @lockExpiration))
              ORDER BY occurred_on, id
              LIMIT @batchSize`,
		Params: map[string]interface{}{
			"statusPending":    string(StatusPending),
			"statusProcessing": string(StatusProcessing),
			"lockExpiration":   time.Now().Add(-lockExpiration),
			"batchSize":        int64(batchSize),
		},
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

		var record OutboxRecord
		var aggregateType, eventType string
		var retryCount int64
		if err := row.Columns(
			&record.ID,
			&aggregateType,
			&eventType,
			&record.PayloadType,
			&record.AggregateID,
			&record.OccurredOn,
			&record.Payload,
			&retryCount); err != nil {
			return nil, err
		}
		record.AggregateType = event.AggregateType(aggregateType)
		record.EventType = event.Type(eventType)
		record.RetryCount = int(retryCount)
		records = append(records, record)
	}

	// Claim the fetched records so concurrent relays skip them.
	for i := range records {
		if err := s.setStatus(ctx, records[i].ID, StatusProcessing, ""); err != nil {
			return nil, err
		}
		records[i].Status = StatusProcessing
	}

	return records, nil
}

func (s *SpannerRepository) MarkPublished(ctx context.Context, recordID string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE outbox SET status = @status, processed_at = CURRENT_TIMESTAMP(), updated_at = CURRENT_TIMESTAMP() WHERE id = @id`,
			Params: map[string]interface{}{
				"status": string(StatusPublished),
				"id":     recordID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) MarkFailed(ctx context.Context, recordID string, lastErr string) error {
	return s.setStatus(ctx, recordID, StatusFailed, lastErr)
}

func (s *SpannerRepository) MarkCanceled(ctx context.Context, recordID string, reason string) error {
	return s.setStatus(ctx, recordID, StatusCanceled, reason)
}

func (s *SpannerRepository) IncrementRetryCount(ctx context.Context, recordID string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE outbox SET retry_count = retry_count + 1, updated_at = CURRENT_TIMESTAMP() WHERE id = @id`,
			Params: map[string]interface{}{
				"id": recordID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) setStatus(ctx context.Context, recordID string, status Status, errorMessage string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE outbox SET status = @status, error_message = @errorMessage, updated_at = CURRENT_TIMESTAMP() WHERE id = @id`,
			Params: map[string]interface{}{
				"status":       string(status),
				"errorMessage": errorMessage,
				"id":           recordID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}
