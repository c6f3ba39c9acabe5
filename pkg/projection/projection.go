package projection

import "time"

// Family names a projection family. Each aggregate type folds into its
// own family, keyed by the id of the entity the counters describe.
type Family string

const (
	FamilyPostSearch     Family = "post_search"
	FamilyCommentCounts  Family = "comment_counts"
	FamilyReactionCounts Family = "reaction_counts"
)

// How many recently applied event ids each projection remembers for
// duplicate detection. A single last-event-id check only survives one
// out-of-order redelivery; the ring widens the window.
const dedupWindow = 32

// Projection is one denormalized read-model document, rebuilt by
// folding the ordered event stream of its target. TotalCount is always
// derived from the individual counters and never trusted from storage.
type Projection struct {
	ID           string            `json:"id" bson:"_id"`
	Family       Family            `json:"family" bson:"family"`
	LikeCount    int64             `json:"like_count" bson:"like_count"`
	DislikeCount int64             `json:"dislike_count" bson:"dislike_count"`
	CommentCount int64             `json:"comment_count" bson:"comment_count"`
	TotalCount   int64             `json:"total_count" bson:"total_count"`
	Fields       map[string]string `json:"fields,omitempty" bson:"fields,omitempty"`

	Version       int64     `json:"version" bson:"version"`
	LastEventID   string    `json:"last_event_id" bson:"last_event_id"`
	AppliedEvents []string  `json:"applied_events" bson:"applied_events"`
	EventCount    int64     `json:"event_count" bson:"event_count"`
	LastEventAt   time.Time `json:"last_event_at" bson:"last_event_at"`
}

func newEmpty(family Family, targetID string) *Projection {
	return &Projection{
		ID:     targetID,
		Family: family,
	}
}

// Seen reports whether eventID was already folded into this projection.
func (p *Projection) Seen(eventID string) bool {
	if eventID == p.LastEventID {
		return true
	}
	for _, id := range p.AppliedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

func (p *Projection) recordApplied(eventID string, occurredAt time.Time) {
	p.Version++
	p.EventCount++
	p.LastEventID = eventID
	p.LastEventAt = occurredAt
	p.AppliedEvents = append(p.AppliedEvents, eventID)
	if len(p.AppliedEvents) > dedupWindow {
		p.AppliedEvents = p.AppliedEvents[len(p.AppliedEvents)-dedupWindow:]
	}
}

func (p *Projection) recomputeTotal() {
	p.TotalCount = p.LikeCount + p.DislikeCount + p.CommentCount
}
