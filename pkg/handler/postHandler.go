package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
	"github.com/zoff-tech/go-projection/pkg/projection"
)

// PostHandler maintains the post search-index projection. On PostDeleted
// it also removes the per-post counter projections, since their target
// id is the deleted post.
type PostHandler struct {
	search         *projection.Applier
	commentCounts  *projection.Applier
	reactionCounts *projection.Applier
	logger         *zap.Logger
}

func NewPostHandler(search, commentCounts, reactionCounts *projection.Applier, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		search:         search,
		commentCounts:  commentCounts,
		reactionCounts: reactionCounts,
		logger:         logger,
	}
}

func (h *PostHandler) CanHandle(t event.Type) bool {
	switch t {
	case event.TypePostCreated, event.TypePostUpdated, event.TypePostPublished, event.TypePostDeleted:
		return true
	}
	return false
}

func (h *PostHandler) Handle(ctx context.Context, env event.Envelope) error {
	fact, err := decodeFact[event.PostFact](env)
	if err != nil {
		return err
	}

	if env.EventType == event.TypePostDeleted {
		return h.removeAll(ctx, fact.PostID)
	}

	mutate, updateOnly := postMutation(env.EventType, fact)

	_, err = h.search.Apply(ctx, projection.ApplyRequest{
		TargetID:   fact.PostID,
		EventID:    env.EventID,
		OccurredAt: env.OccurredAt,
		Mutate:     mutate,
		UpdateOnly: updateOnly,
	})
	return err
}

func postMutation(t event.Type, fact *event.PostFact) (projection.MutationFn, bool) {
	switch t {
	case event.TypePostCreated:
		return func(p *projection.Projection) error {
			p.Fields = map[string]string{
				"title":     fact.Title,
				"content":   fact.Content,
				"author_id": fact.AuthorID,
				"status":    "draft",
			}
			return nil
		}, false
	case event.TypePostPublished:
		return func(p *projection.Projection) error {
			p.Fields["status"] = "published"
			return nil
		}, true
	default: // PostUpdated
		return func(p *projection.Projection) error {
			p.Fields["title"] = fact.Title
			p.Fields["content"] = fact.Content
			return nil
		}, true
	}
}

func (h *PostHandler) removeAll(ctx context.Context, postID string) error {
	if err := h.search.Remove(ctx, postID); err != nil {
		return err
	}
	if err := h.commentCounts.Remove(ctx, postID); err != nil {
		return err
	}
	return h.reactionCounts.Remove(ctx, postID)
}
