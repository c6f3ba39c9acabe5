package projection

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/event"
)

const lockStripes = 64

// MutationFn describes how a fact changes the counters of a projection.
// It must be pure: no I/O, no bookkeeping fields — version, totals and
// the dedup window are maintained by the applier.
type MutationFn func(p *Projection) error

// ApplyRequest carries one event into a projection.
type ApplyRequest struct {
	TargetID   string
	EventID    string
	OccurredAt time.Time
	Mutate     MutationFn
	// UpdateOnly events cannot lazily create their projection; if the
	// target was already deleted the apply fails with ErrStaleTarget.
	UpdateOnly bool
}

// Applier folds events into one projection family with idempotent
// read-modify-write semantics. A striped mutex keeps a single writer
// per target id; distinct targets proceed independently.
type Applier struct {
	family Family
	docs   DocumentStore
	logger *zap.Logger
	tracer trace.Tracer

	locks [lockStripes]sync.Mutex
}

func NewApplier(family Family, docs DocumentStore, logger *zap.Logger) *Applier {
	return &Applier{
		family: family,
		docs:   docs,
		logger: logger,
		tracer: otel.Tracer("go-projection"),
	}
}

// Apply folds one event into the projection for req.TargetID. Applying
// an already-seen event id is a no-op returning the unchanged
// projection: redelivery is expected, duplicate counting is not.
func (a *Applier) Apply(ctx context.Context, req ApplyRequest) (*Projection, error) {
	ctx, span := a.tracer.Start(ctx, "ProjectionApply", trace.WithAttributes(
		attribute.String("projection.family", string(a.family)),
		attribute.String("projection.target_id", req.TargetID),
		attribute.String("event.id", req.EventID),
	))
	defer span.End()

	lock := a.lockFor(req.TargetID)
	lock.Lock()
	defer lock.Unlock()

	current, err := a.docs.Get(ctx, req.TargetID)
	switch {
	case errors.Is(err, ErrNotFound):
		if req.UpdateOnly {
			a.logger.Warn("update event for deleted projection, dropping",
				zap.String("family", string(a.family)),
				zap.String("target_id", req.TargetID),
				zap.String("event_id", req.EventID),
			)
			return nil, event.ErrStaleTarget
		}
		current = newEmpty(a.family, req.TargetID)
	case err != nil:
		span.RecordError(err)
		return nil, err
	}

	if current.Seen(req.EventID) {
		a.logger.Warn("duplicate event, idempotent no-op",
			zap.String("family", string(a.family)),
			zap.String("target_id", req.TargetID),
			zap.String("event_id", req.EventID),
			zap.Int64("version", current.Version),
		)
		span.SetAttributes(attribute.Bool("projection.duplicate", true))
		return current, nil
	}

	if err := req.Mutate(current); err != nil {
		span.RecordError(err)
		return nil, err
	}

	current.recomputeTotal()
	current.recordApplied(req.EventID, req.OccurredAt)

	if err := a.docs.Put(ctx, req.TargetID, current); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("projection.version", current.Version))
	return current, nil
}

// Remove deletes the projection for targetID in response to an explicit
// aggregate-deletion event. Deleting an absent projection is a no-op.
func (a *Applier) Remove(ctx context.Context, targetID string) error {
	ctx, span := a.tracer.Start(ctx, "ProjectionRemove", trace.WithAttributes(
		attribute.String("projection.family", string(a.family)),
		attribute.String("projection.target_id", targetID),
	))
	defer span.End()

	lock := a.lockFor(targetID)
	lock.Lock()
	defer lock.Unlock()

	err := a.docs.Delete(ctx, targetID)
	if errors.Is(err, ErrNotFound) {
		a.logger.Warn("deletion of absent projection",
			zap.String("family", string(a.family)),
			zap.String("target_id", targetID),
		)
		return nil
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (a *Applier) lockFor(targetID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(targetID))
	return &a.locks[h.Sum32()%lockStripes]
}
