package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
	"github.com/zoff-tech/go-projection/pkg/projection"
)

// CommentHandler maintains the per-post comment-count projection.
// Comment events target the post the comment belongs to; the comment's
// own id only matters for idempotency via the event id.
type CommentHandler struct {
	counts *projection.Applier
	logger *zap.Logger
}

func NewCommentHandler(counts *projection.Applier, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{counts: counts, logger: logger}
}

func (h *CommentHandler) CanHandle(t event.Type) bool {
	switch t {
	case event.TypeCommentCreated, event.TypeCommentUpdated, event.TypeCommentDeleted:
		return true
	}
	return false
}

func (h *CommentHandler) Handle(ctx context.Context, env event.Envelope) error {
	fact, err := decodeFact[event.CommentFact](env)
	if err != nil {
		return err
	}

	var mutate projection.MutationFn
	updateOnly := false

	switch env.EventType {
	case event.TypeCommentCreated:
		mutate = func(p *projection.Projection) error {
			p.CommentCount++
			return nil
		}
	case event.TypeCommentUpdated:
		// An edit changes no counters but is still folded, so the
		// projection version advances with the aggregate's stream.
		updateOnly = true
		mutate = func(p *projection.Projection) error { return nil }
	case event.TypeCommentDeleted:
		updateOnly = true
		mutate = func(p *projection.Projection) error {
			if p.CommentCount > 0 {
				p.CommentCount--
			}
			return nil
		}
	}

	_, err = h.counts.Apply(ctx, projection.ApplyRequest{
		TargetID:   fact.PostID,
		EventID:    env.EventID,
		OccurredAt: env.OccurredAt,
		Mutate:     mutate,
		UpdateOnly: updateOnly,
	})
	return err
}
