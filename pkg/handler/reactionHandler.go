package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
	"github.com/zoff-tech/go-projection/pkg/projection"
)

// ReactionHandler folds ReactionAdded/ReactionRemoved facts into the
// reaction-count projection of the post or comment they target.
type ReactionHandler struct {
	counts *projection.Applier
	logger *zap.Logger
}

func NewReactionHandler(counts *projection.Applier, logger *zap.Logger) *ReactionHandler {
	return &ReactionHandler{counts: counts, logger: logger}
}

func (h *ReactionHandler) CanHandle(t event.Type) bool {
	return t == event.TypeReactionAdded || t == event.TypeReactionRemoved
}

func (h *ReactionHandler) Handle(ctx context.Context, env event.Envelope) error {
	fact, err := decodeFact[event.ReactionFact](env)
	if err != nil {
		return err
	}

	delta := int64(1)
	updateOnly := false
	if env.EventType == event.TypeReactionRemoved {
		delta = -1
		updateOnly = true
	}

	mutate, err := reactionMutation(env.EventType, fact.Kind, delta)
	if err != nil {
		return err
	}

	_, err = h.counts.Apply(ctx, projection.ApplyRequest{
		TargetID:   fact.TargetID,
		EventID:    env.EventID,
		OccurredAt: env.OccurredAt,
		Mutate:     mutate,
		UpdateOnly: updateOnly,
	})
	return err
}

func reactionMutation(t event.Type, kind event.ReactionKind, delta int64) (projection.MutationFn, error) {
	switch kind {
	case event.ReactionLike:
		return func(p *projection.Projection) error {
			// Clamped: a duplicate removal past the dedup window must not
			// drive the counter negative.
			p.LikeCount = max(p.LikeCount+delta, 0)
			return nil
		}, nil
	case event.ReactionDislike:
		return func(p *projection.Projection) error {
			p.DislikeCount = max(p.DislikeCount+delta, 0)
			return nil
		}, nil
	default:
		return nil, &event.MalformedPayloadError{
			EventType: t,
			Err:       fmt.Errorf("unknown reaction kind %q", kind),
		}
	}
}
