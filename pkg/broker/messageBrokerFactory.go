package broker

import (
	"context"
	"fmt"

	"github.com/zoff-tech/go-projection/pkg/config"
)

// NewBroker builds the configured fan-out broker. A nil broker (no
// fan-out) is represented by an empty cfg.Type and handled by callers.
func NewBroker(ctx context.Context, cfg *config.BrokerSettings) (MessageBroker, error) {
	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMqBroker(ctx, cfg)
	case "pubsub":
		return NewPubSubClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
