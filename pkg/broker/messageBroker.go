package broker

import (
	"context"

	"github.com/zoff-tech/go-projection/pkg/event"
)

// MessageBroker fans processed envelopes out to external consumers.
// The envelope's delivery key becomes the broker ordering/routing key,
// so per-aggregate ordering survives the hop.
type MessageBroker interface {
	// Publish sends the envelope to the destination derived from its
	// aggregate type.
	Publish(ctx context.Context, env event.Envelope) error
	// Close cleans up any resources (connections).
	Close() error
}
