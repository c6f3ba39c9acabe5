package dispatch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
)

// Handler turns one family of envelopes into projection mutations.
type Handler interface {
	// CanHandle reports whether this handler interprets the event type.
	CanHandle(t event.Type) bool
	// Handle decodes the envelope payload and applies it.
	Handle(ctx context.Context, env event.Envelope) error
}

// Dispatcher routes an envelope to the one handler claiming its event
// type. Routing conflicts are configuration errors caught at
// construction, never at dispatch time.
type Dispatcher struct {
	handlers []Handler
	byType   map[event.Type]Handler
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewDispatcher validates the handler set exhaustively: every known
// event type must be claimed by exactly one handler.
func NewDispatcher(logger *zap.Logger, handlers ...Handler) (*Dispatcher, error) {
	byType := make(map[event.Type]Handler, len(event.Types()))
	for _, t := range event.Types() {
		for _, h := range handlers {
			if !h.CanHandle(t) {
				continue
			}
			if prev, ok := byType[t]; ok {
				return nil, fmt.Errorf("event type %q claimed by both %T and %T", t, prev, h)
			}
			byType[t] = h
		}
		if _, ok := byType[t]; !ok {
			return nil, fmt.Errorf("event type %q has no handler", t)
		}
	}

	return &Dispatcher{
		handlers: handlers,
		byType:   byType,
		logger:   logger,
		tracer:   otel.Tracer("go-projection"),
	}, nil
}

// Dispatch routes env to its handler. An event type outside the known
// set is acknowledged as a no-op: producers may ship new types before
// this consumer learns them.
func (d *Dispatcher) Dispatch(ctx context.Context, env event.Envelope) error {
	ctx, span := d.tracer.Start(ctx, "Dispatch", trace.WithAttributes(
		attribute.String("event.id", env.EventID),
		attribute.String("event.type", string(env.EventType)),
		attribute.String("event.aggregate_id", env.AggregateID),
	))
	defer span.End()

	handler, ok := d.byType[env.EventType]
	if !ok {
		d.logger.Warn("unknown event type, acknowledging as no-op",
			zap.String("event_type", string(env.EventType)),
			zap.String("event_id", env.EventID),
		)
		span.SetAttributes(attribute.Bool("event.unhandled", true))
		return nil
	}

	if err := handler.Handle(ctx, env); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
