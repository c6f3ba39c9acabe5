package store

import (
	"context"
)

// OutBoxRepository defines the database operations for outbox records.
type OutBoxRepository interface {
	// FetchPending retrieves up to batchSize unprocessed records in
	// occurred-on order and marks them processing. Records stuck in
	// processing past the lock expiration window are re-eligible.
	FetchPending(ctx context.Context, batchSize int) ([]OutboxRecord, error)
	// MarkPublished marks a record as delivered so it is never re-relayed.
	MarkPublished(ctx context.Context, recordID string) error
	// MarkFailed is terminal: the record exhausted its retries and needs
	// operator replay. The last error is recorded for diagnosis.
	MarkFailed(ctx context.Context, recordID string, lastErr string) error
	// MarkCanceled drops a poison record (malformed payload, stale
	// target) that can never succeed on retry.
	MarkCanceled(ctx context.Context, recordID string, reason string) error
	// IncrementRetryCount bumps the retry counter after a failed
	// delivery attempt.
	IncrementRetryCount(ctx context.Context, recordID string) error
}
