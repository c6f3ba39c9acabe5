package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
)

type stubHandler struct {
	types   map[event.Type]bool
	handled []event.Envelope
	err     error
}

func newStubHandler(types ...event.Type) *stubHandler {
	claimed := make(map[event.Type]bool, len(types))
	for _, t := range types {
		claimed[t] = true
	}
	return &stubHandler{types: claimed}
}

func (h *stubHandler) CanHandle(t event.Type) bool {
	return h.types[t]
}

func (h *stubHandler) Handle(_ context.Context, env event.Envelope) error {
	h.handled = append(h.handled, env)
	return h.err
}

func fullHandlerSet() (post, comment, reaction *stubHandler) {
	post = newStubHandler(event.TypePostCreated, event.TypePostUpdated, event.TypePostPublished, event.TypePostDeleted)
	comment = newStubHandler(event.TypeCommentCreated, event.TypeCommentUpdated, event.TypeCommentDeleted)
	reaction = newStubHandler(event.TypeReactionAdded, event.TypeReactionRemoved)
	return post, comment, reaction
}

func TestNewDispatcher_DuplicateClaim(t *testing.T) {
	post, comment, reaction := fullHandlerSet()
	greedy := newStubHandler(event.TypeReactionAdded)

	d, err := NewDispatcher(zap.NewNop(), post, comment, reaction, greedy)
	assert.Nil(t, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReactionAdded")
	assert.Contains(t, err.Error(), "claimed by both")
}

func TestNewDispatcher_MissingHandler(t *testing.T) {
	post, comment, _ := fullHandlerSet()

	d, err := NewDispatcher(zap.NewNop(), post, comment)
	assert.Nil(t, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no handler")
}

func TestDispatch_RoutesToClaimingHandler(t *testing.T) {
	post, comment, reaction := fullHandlerSet()
	d, err := NewDispatcher(zap.NewNop(), post, comment, reaction)
	require.NoError(t, err)

	env := event.Envelope{EventID: "e1", EventType: event.TypeCommentCreated, AggregateID: "c-1"}
	require.NoError(t, d.Dispatch(context.Background(), env))

	assert.Len(t, comment.handled, 1)
	assert.Equal(t, "e1", comment.handled[0].EventID)
	assert.Empty(t, post.handled)
	assert.Empty(t, reaction.handled)
}

func TestDispatch_UnknownTypeIsAcknowledged(t *testing.T) {
	post, comment, reaction := fullHandlerSet()
	d, err := NewDispatcher(zap.NewNop(), post, comment, reaction)
	require.NoError(t, err)

	env := event.Envelope{EventID: "e1", EventType: event.Type("ReactionLaughed")}
	assert.NoError(t, d.Dispatch(context.Background(), env))

	assert.Empty(t, post.handled)
	assert.Empty(t, comment.handled)
	assert.Empty(t, reaction.handled)
}

func TestDispatch_PropagatesHandlerError(t *testing.T) {
	post, comment, reaction := fullHandlerSet()
	reaction.err = errors.New("projection store unreachable")

	d, err := NewDispatcher(zap.NewNop(), post, comment, reaction)
	require.NoError(t, err)

	env := event.Envelope{EventID: "e1", EventType: event.TypeReactionAdded}
	assert.ErrorIs(t, d.Dispatch(context.Background(), env), reaction.err)
}
