package event

import "time"

// Envelope is the unit of delivery between the change relay and the
// dispatcher. It is ephemeral: rebuilt from the stored outbox record on
// every delivery attempt, never persisted itself.
type Envelope struct {
	EventID       string
	AggregateType AggregateType
	EventType     Type
	AggregateID   string
	Payload       []byte
	OccurredAt    time.Time
	// DeliveryKey is the ordering key: envelopes sharing a key are
	// delivered sequentially, in occurred-at order.
	DeliveryKey string
}
