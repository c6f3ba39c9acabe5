package event

import "fmt"

// Type identifies the kind of domain fact carried by an outbox record.
type Type string

const (
	TypePostCreated     Type = "PostCreated"
	TypePostUpdated     Type = "PostUpdated"
	TypePostPublished   Type = "PostPublished"
	TypePostDeleted     Type = "PostDeleted"
	TypeCommentCreated  Type = "CommentCreated"
	TypeCommentUpdated  Type = "CommentUpdated"
	TypeCommentDeleted  Type = "CommentDeleted"
	TypeReactionAdded   Type = "ReactionAdded"
	TypeReactionRemoved Type = "ReactionRemoved"
)

// AggregateType names the aggregate family an event belongs to.
type AggregateType string

const (
	AggregatePost     AggregateType = "Post"
	AggregateComment  AggregateType = "Comment"
	AggregateReaction AggregateType = "Reaction"
)

var aggregateByType = map[Type]AggregateType{
	TypePostCreated:     AggregatePost,
	TypePostUpdated:     AggregatePost,
	TypePostPublished:   AggregatePost,
	TypePostDeleted:     AggregatePost,
	TypeCommentCreated:  AggregateComment,
	TypeCommentUpdated:  AggregateComment,
	TypeCommentDeleted:  AggregateComment,
	TypeReactionAdded:   AggregateReaction,
	TypeReactionRemoved: AggregateReaction,
}

// Types returns every event type known to this build, in a stable order.
func Types() []Type {
	return []Type{
		TypePostCreated,
		TypePostUpdated,
		TypePostPublished,
		TypePostDeleted,
		TypeCommentCreated,
		TypeCommentUpdated,
		TypeCommentDeleted,
		TypeReactionAdded,
		TypeReactionRemoved,
	}
}

// Known reports whether t is part of the closed event-type set.
func Known(t Type) bool {
	_, ok := aggregateByType[t]
	return ok
}

// AggregateOf returns the aggregate family of a known event type.
func AggregateOf(t Type) (AggregateType, error) {
	agg, ok := aggregateByType[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	return agg, nil
}
