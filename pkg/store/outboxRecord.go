package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/zoff-tech/go-projection/pkg/event"
)

// Status represents the lifecycle state of an outbox record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// OutboxRecord is the append-only unit of intent written in the same
// transaction as the domain mutation it describes. Only the relay and
// the retry controller mutate it after insert; once published it is
// immutable.
type OutboxRecord struct {
	ID            string              `json:"id" bson:"id"`
	AggregateType event.AggregateType `json:"aggregate_type" bson:"aggregate_type"`
	EventType     event.Type          `json:"event_type" bson:"event_type"`
	PayloadType   string              `json:"payload_type" bson:"payload_type"`
	AggregateID   string              `json:"aggregate_id" bson:"aggregate_id"`
	OccurredOn    time.Time           `json:"occurred_on" bson:"occurred_on"`
	Payload       []byte              `json:"payload" bson:"payload"`
	Status        Status              `json:"status" bson:"status"`
	UpdatedAt     time.Time           `json:"updated_at" bson:"updated_at"`
	RetryCount    int                 `json:"retry_count" bson:"retry_count"`
	ProcessedAt   *time.Time          `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty" bson:"error_message,omitempty"`
}

// NewRecord creates a pending OutboxRecord for a known event type.
func NewRecord(eventType event.Type, aggregateID string, payloadType string, payload []byte) (*OutboxRecord, error) {
	aggregate, err := event.AggregateOf(eventType)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &OutboxRecord{
		ID:            uuid.NewString(),
		AggregateType: aggregate,
		EventType:     eventType,
		PayloadType:   payloadType,
		AggregateID:   aggregateID,
		OccurredOn:    now,
		Payload:       payload,
		Status:        StatusPending,
		UpdatedAt:     now,
	}, nil
}

// Envelope rebuilds the delivery unit for this record. The aggregate id
// doubles as the delivery key so that one aggregate's events stay in
// order relative to each other.
func (r *OutboxRecord) Envelope() event.Envelope {
	return event.Envelope{
		EventID:       r.ID,
		AggregateType: r.AggregateType,
		EventType:     r.EventType,
		AggregateID:   r.AggregateID,
		Payload:       r.Payload,
		OccurredAt:    r.OccurredOn,
		DeliveryKey:   r.AggregateID,
	}
}
