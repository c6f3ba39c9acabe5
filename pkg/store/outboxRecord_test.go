package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoff-tech/go-projection/pkg/event"
)

func TestNewRecord(t *testing.T) {
	record, err := NewRecord(event.TypeCommentCreated, "c-1", "event.CommentFact", []byte(`{}`))
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, event.AggregateComment, record.AggregateType)
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, 0, record.RetryCount)
	assert.False(t, record.OccurredOn.IsZero())
	assert.Equal(t, record.OccurredOn, record.UpdatedAt)
}

func TestNewRecord_UnknownType(t *testing.T) {
	record, err := NewRecord(event.Type("Bogus"), "x", "", nil)
	assert.ErrorIs(t, err, event.ErrUnknownEventType)
	assert.Nil(t, record)
}

func TestRecordEnvelope(t *testing.T) {
	record, err := NewRecord(event.TypeReactionAdded, "post-7", "event.ReactionFact", []byte(`{"kind":"LIKE"}`))
	require.NoError(t, err)

	env := record.Envelope()
	assert.Equal(t, record.ID, env.EventID)
	assert.Equal(t, event.AggregateReaction, env.AggregateType)
	assert.Equal(t, event.TypeReactionAdded, env.EventType)
	assert.Equal(t, "post-7", env.AggregateID)
	// The aggregate id is the ordering key.
	assert.Equal(t, "post-7", env.DeliveryKey)
	assert.Equal(t, record.OccurredOn, env.OccurredAt)
}
