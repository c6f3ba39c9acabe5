package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
	"github.com/zoff-tech/go-projection/pkg/projection"
)

func newEnvelope(t *testing.T, id string, eventType event.Type, fact any) event.Envelope {
	t.Helper()
	payload, err := json.Marshal(fact)
	require.NoError(t, err)
	return event.Envelope{
		EventID:    id,
		EventType:  eventType,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

func newCountsApplier(family projection.Family) (*projection.Applier, *projection.MemoryStore) {
	docs := projection.NewMemoryStore()
	return projection.NewApplier(family, docs, zap.NewNop()), docs
}

func TestReactionHandler_CanHandle(t *testing.T) {
	h := NewReactionHandler(nil, zap.NewNop())
	assert.True(t, h.CanHandle(event.TypeReactionAdded))
	assert.True(t, h.CanHandle(event.TypeReactionRemoved))
	assert.False(t, h.CanHandle(event.TypePostCreated))
}

func TestReactionHandler_LikesAccumulate(t *testing.T) {
	applier, docs := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())
	ctx := context.Background()

	e1 := newEnvelope(t, "E1", event.TypeReactionAdded, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})
	e2 := newEnvelope(t, "E2", event.TypeReactionAdded, event.ReactionFact{ReactionID: "r2", TargetID: "T", UserID: "u2", Kind: event.ReactionLike})

	require.NoError(t, h.Handle(ctx, e1))
	require.NoError(t, h.Handle(ctx, e2))

	p, err := docs.Get(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.LikeCount)
	assert.Equal(t, int64(0), p.DislikeCount)
	assert.Equal(t, int64(2), p.TotalCount)
	assert.Equal(t, int64(2), p.Version)
	assert.Equal(t, int64(2), p.EventCount)

	// Redelivered E2 leaves the projection untouched.
	require.NoError(t, h.Handle(ctx, e2))
	p, err = docs.Get(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.LikeCount)
	assert.Equal(t, int64(2), p.Version)
}

func TestReactionHandler_Removal(t *testing.T) {
	applier, docs := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())
	ctx := context.Background()

	added := newEnvelope(t, "E1", event.TypeReactionAdded, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})
	removed := newEnvelope(t, "E2", event.TypeReactionRemoved, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})

	require.NoError(t, h.Handle(ctx, added))
	require.NoError(t, h.Handle(ctx, removed))

	p, err := docs.Get(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.LikeCount)
	assert.Equal(t, int64(0), p.TotalCount)
	assert.Equal(t, int64(2), p.Version)
}

func TestReactionHandler_RemovalBeforeAnyReaction(t *testing.T) {
	applier, _ := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())

	// A removal cannot conjure a projection out of nothing.
	removed := newEnvelope(t, "E1", event.TypeReactionRemoved, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})
	err := h.Handle(context.Background(), removed)
	assert.ErrorIs(t, err, event.ErrStaleTarget)
}

func TestReactionHandler_DuplicateRemovalClampsAtZero(t *testing.T) {
	applier, docs := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())
	ctx := context.Background()

	added := newEnvelope(t, "E1", event.TypeReactionAdded, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})
	removed := newEnvelope(t, "E2", event.TypeReactionRemoved, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})
	// Same removal redelivered under a fresh event id, as after a dedup
	// window eviction.
	removedAgain := newEnvelope(t, "E3", event.TypeReactionRemoved, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionLike})

	require.NoError(t, h.Handle(ctx, added))
	require.NoError(t, h.Handle(ctx, removed))
	require.NoError(t, h.Handle(ctx, removedAgain))

	p, err := docs.Get(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.LikeCount)
	assert.Equal(t, int64(0), p.TotalCount)
}

func TestReactionHandler_Dislikes(t *testing.T) {
	applier, docs := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())
	ctx := context.Background()

	e1 := newEnvelope(t, "E1", event.TypeReactionAdded, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionDislike})
	require.NoError(t, h.Handle(ctx, e1))

	p, err := docs.Get(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.LikeCount)
	assert.Equal(t, int64(1), p.DislikeCount)
	assert.Equal(t, int64(1), p.TotalCount)
}

func TestReactionHandler_MalformedPayload(t *testing.T) {
	applier, _ := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())

	env := event.Envelope{EventID: "E1", EventType: event.TypeReactionAdded, Payload: []byte(`{not json`)}
	err := h.Handle(context.Background(), env)

	var malformed *event.MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, event.TypeReactionAdded, malformed.EventType)
	assert.True(t, event.IsPoison(err))
}

func TestReactionHandler_UnknownKind(t *testing.T) {
	applier, docs := newCountsApplier(projection.FamilyReactionCounts)
	h := NewReactionHandler(applier, zap.NewNop())
	ctx := context.Background()

	env := newEnvelope(t, "E1", event.TypeReactionAdded, event.ReactionFact{ReactionID: "r1", TargetID: "T", UserID: "u1", Kind: event.ReactionKind("LAUGH")})
	err := h.Handle(ctx, env)
	assert.True(t, event.IsPoison(err))

	_, err = docs.Get(ctx, "T")
	assert.ErrorIs(t, err, projection.ErrNotFound)
}
