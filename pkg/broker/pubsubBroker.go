package broker

import (
	"context"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-projection/pkg/config"
	"github.com/zoff-tech/go-projection/pkg/event"
)

// PubSubBrokerCreator defines a function type for creating Pub/Sub clients.
type PubSubBrokerCreator func(ctx context.Context, settings *config.BrokerSettings, opts ...option.ClientOption) (MessageBroker, error)

// NewPubSubClient is the default implementation of PubSubBrokerCreator.
var NewPubSubClient PubSubBrokerCreator = func(ctx context.Context, settings *config.BrokerSettings, opts ...option.ClientOption) (MessageBroker, error) {
	client, err := pubsub.NewClient(ctx, settings.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return &pubSubBroker{client: client}, nil
}

type pubSubBroker struct {
	client *pubsub.Client
}

// topicFor maps an aggregate family to its fan-out topic, e.g.
// Post -> post-events.
func topicFor(aggregate event.AggregateType) string {
	return strings.ToLower(string(aggregate)) + "-events"
}

func (p *pubSubBroker) Publish(ctx context.Context, env event.Envelope) error {
	topic := topicFor(env.AggregateType)

	tracer := otel.Tracer("go-projection")
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("pubsub"),
			semconv.MessagingDestinationKindKey.String("topic"),
			semconv.MessagingDestinationKey.String(topic),
		),
	)
	defer span.End()

	// Inject the trace context into the message attributes
	propagator := otel.GetTextMapPropagator()
	attributes := map[string]string{
		"event_id":   env.EventID,
		"event_type": string(env.EventType),
	}
	propagator.Inject(ctx, propagation.MapCarrier(attributes))

	message := &pubsub.Message{
		Data:        env.Payload,
		Attributes:  attributes,
		OrderingKey: env.DeliveryKey,
	}

	res := p.client.Topic(topic).Publish(ctx, message)
	_, err := res.Get(ctx) // wait for server ack
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(env.Payload)),
	)

	return nil
}

func (p *pubSubBroker) Close() error {
	return p.client.Close()
}
