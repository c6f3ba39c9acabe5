package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/broker"
	"github.com/zoff-tech/go-projection/pkg/config"
	"github.com/zoff-tech/go-projection/pkg/dispatch"
	"github.com/zoff-tech/go-projection/pkg/event"
	"github.com/zoff-tech/go-projection/pkg/store"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBatchSize      = 10
	defaultHandlerTimeout = 10 * time.Second
)

// Relay is the polling change relay: it claims pending outbox records,
// delivers them to the dispatcher in per-aggregate order, and settles
// their status. It is an explicit background task with its own
// lifecycle; Start spawns the loop and Stop waits for it to drain.
type Relay struct {
	repo       store.OutBoxRepository
	dispatcher *dispatch.Dispatcher
	fanout     broker.MessageBroker // optional, may be nil
	logger     *zap.Logger
	tracer     trace.Tracer

	policy         RetryPolicy
	pollInterval   time.Duration
	batchSize      int
	handlerTimeout time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(repo store.OutBoxRepository, dispatcher *dispatch.Dispatcher, fanout broker.MessageBroker, logger *zap.Logger, cfg *config.Settings) *Relay {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	handlerTimeout := cfg.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}

	return &Relay{
		repo:       repo,
		dispatcher: dispatcher,
		fanout:     fanout,
		logger:     logger,
		tracer:     otel.Tracer("go-projection"),
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryBackoff,
		}.withDefaults(),
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		handlerTimeout: handlerTimeout,
	}
}

// Start launches the polling loop. It returns immediately; use Stop for
// a graceful shutdown.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.run(ctx)
	}()
}

// Stop cancels the polling loop and blocks until in-flight deliveries
// have settled.
func (r *Relay) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Relay) run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("relay cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce fetches and settles a single batch. Records sharing an
// aggregate id are delivered sequentially in occurred-on order; groups
// for distinct aggregates run concurrently.
func (r *Relay) ProcessOnce(ctx context.Context) error {
	records, err := r.repo.FetchPending(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	groups := groupByAggregate(records)

	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		go func(group []store.OutboxRecord) {
			defer wg.Done()
			for i := range group {
				if ctx.Err() != nil {
					return
				}
				r.deliver(ctx, &group[i])
			}
		}(group)
	}
	wg.Wait()

	return ctx.Err()
}

// groupByAggregate partitions a fetched batch into per-aggregate
// sequences, preserving the fetch order inside each sequence.
func groupByAggregate(records []store.OutboxRecord) [][]store.OutboxRecord {
	index := make(map[string]int, len(records))
	var groups [][]store.OutboxRecord
	for _, record := range records {
		i, ok := index[record.AggregateID]
		if !ok {
			i = len(groups)
			index[record.AggregateID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], record)
	}
	return groups
}

// deliver dispatches one record with bounded retries. Transient
// failures back off exponentially and bump the record's retry count;
// exhausting the attempts is terminal (FAILED, operator replay).
// Poison envelopes are dropped (CANCELED) so the aggregate's ordered
// stream behind them keeps moving.
func (r *Relay) deliver(ctx context.Context, record *store.OutboxRecord) {
	ctx, span := r.tracer.Start(ctx, "RelayDeliver", trace.WithAttributes(
		attribute.String("event.id", record.ID),
		attribute.String("event.type", string(record.EventType)),
		attribute.String("event.aggregate_id", record.AggregateID),
		attribute.Int("event.retry_count", record.RetryCount),
	))
	defer span.End()

	env := record.Envelope()

	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		err := r.dispatchOnce(ctx, env)
		if err == nil {
			r.settlePublished(ctx, record, env)
			return
		}
		lastErr = err

		if event.IsPoison(err) {
			// A stale target is an expected race with deletion, not a
			// producer defect like a malformed payload.
			logPoison := r.logger.Error
			if errors.Is(err, event.ErrStaleTarget) {
				logPoison = r.logger.Warn
			}
			logPoison("dropping poison envelope",
				zap.String("record_id", record.ID),
				zap.String("event_type", string(record.EventType)),
				zap.Error(err),
			)
			span.RecordError(err)
			if markErr := r.repo.MarkCanceled(ctx, record.ID, err.Error()); markErr != nil {
				r.logger.Error("failed to cancel record", zap.String("record_id", record.ID), zap.Error(markErr))
			}
			return
		}

		// Transient: account for the attempt, then back off.
		if incErr := r.repo.IncrementRetryCount(ctx, record.ID); incErr != nil {
			r.logger.Error("failed to increment retry count", zap.String("record_id", record.ID), zap.Error(incErr))
		}
		record.RetryCount++

		r.logger.Warn("delivery attempt failed",
			zap.String("record_id", record.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if attempt+1 < r.policy.MaxAttempts {
			if err := sleep(ctx, r.policy.delay(attempt)); err != nil {
				return
			}
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	r.logger.Error("delivery failed terminally, operator replay required",
		zap.String("record_id", record.ID),
		zap.Int("retry_count", record.RetryCount),
		zap.Error(lastErr),
	)
	if err := r.repo.MarkFailed(ctx, record.ID, lastErr.Error()); err != nil {
		r.logger.Error("failed to mark record failed", zap.String("record_id", record.ID), zap.Error(err))
	}
}

func (r *Relay) dispatchOnce(ctx context.Context, env event.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, r.handlerTimeout)
	defer cancel()
	return r.dispatcher.Dispatch(ctx, env)
}

func (r *Relay) settlePublished(ctx context.Context, record *store.OutboxRecord, env event.Envelope) {
	if r.fanout != nil {
		// Fan-out is best-effort: the projection already applied, and a
		// republish failure must not re-run the handler.
		if err := r.fanout.Publish(ctx, env); err != nil {
			r.logger.Warn("envelope fan-out failed",
				zap.String("record_id", record.ID),
				zap.Error(err),
			)
		}
	}
	if err := r.repo.MarkPublished(ctx, record.ID); err != nil {
		r.logger.Error("failed to mark record published", zap.String("record_id", record.ID), zap.Error(err))
	}
}
