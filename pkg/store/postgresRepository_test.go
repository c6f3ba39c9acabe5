package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/zoff-tech/go-projection/pkg/event"
)

func TestFetchPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{Db: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "aggregate_type", "event_type", "payload_type", "aggregate_id", "occurred_on", "payload", "retry_count"}).
		AddRow("1", "Reaction", "ReactionAdded", "event.ReactionFact", "post-1", now, []byte(`{"kind":"LIKE"}`), 0).
		AddRow("2", "Post", "PostCreated", "event.PostFact", "post-2", now, []byte(`{"title":"t"}`), 2)

	// The stale-PROCESSING reclaim must key on updated_at, the claim
	// timestamp, never on occurred_on: a record created long ago but
	// freshly claimed by another relay is not stale.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, aggregate_type, event_type, payload_type, aggregate_id, occurred_on, payload, retry_count FROM outbox\s+WHERE \(status=\$1 OR \(status=\$2 AND updated_at < \$3\)\)`).
		WithArgs(StatusPending, StatusProcessing, sqlmock.AnyArg(), 10).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE outbox SET status=\$1, error_message=\$2, updated_at=\$3 WHERE id=\$4`).
		WithArgs(StatusProcessing, "", sqlmock.AnyArg(), "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE outbox SET status=\$1, error_message=\$2, updated_at=\$3 WHERE id=\$4`).
		WithArgs(StatusProcessing, "", sqlmock.AnyArg(), "2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	records, err := repo.FetchPending(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, event.TypeReactionAdded, records[0].EventType)
	assert.Equal(t, "post-1", records[0].AggregateID)
	assert.Equal(t, StatusProcessing, records[0].Status)
	assert.Equal(t, 0, records[0].RetryCount)
	assert.Equal(t, "2", records[1].ID)
	assert.Equal(t, 2, records[1].RetryCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{Db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE outbox SET status=\$1, processed_at=\$2, updated_at=\$3 WHERE id=\$4`).
		WithArgs(StatusPublished, sqlmock.AnyArg(), sqlmock.AnyArg(), "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.MarkPublished(ctx, "1")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{Db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE outbox SET status=\$1, error_message=\$2, updated_at=\$3 WHERE id=\$4`).
		WithArgs(StatusFailed, "store unreachable", sqlmock.AnyArg(), "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.MarkFailed(ctx, "1", "store unreachable")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCanceled(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{Db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE outbox SET status=\$1, error_message=\$2, updated_at=\$3 WHERE id=\$4`).
		WithArgs(StatusCanceled, "malformed ReactionAdded payload", sqlmock.AnyArg(), "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.MarkCanceled(ctx, "1", "malformed ReactionAdded payload")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRetryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{Db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE outbox SET retry_count = retry_count \+ 1, updated_at=\$1 WHERE id=\$2`).
		WithArgs(sqlmock.AnyArg(), "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.IncrementRetryCount(ctx, "1")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
