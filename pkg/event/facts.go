package event

import "time"

// ReactionKind discriminates the reaction counters a fact touches.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "LIKE"
	ReactionDislike ReactionKind = "DISLIKE"
)

// PostFact is the serialized snapshot carried by Post* events.
type PostFact struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CommentFact is the serialized snapshot carried by Comment* events.
type CommentFact struct {
	CommentID string `json:"comment_id"`
	PostID    string `json:"post_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
}

// ReactionFact is the serialized snapshot carried by Reaction* events.
// TargetID is the post or comment the reaction was placed on.
type ReactionFact struct {
	ReactionID string       `json:"reaction_id"`
	TargetID   string       `json:"target_id"`
	UserID     string       `json:"user_id"`
	Kind       ReactionKind `json:"kind"`
}
