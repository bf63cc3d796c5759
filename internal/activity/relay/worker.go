// Package relay drains committed activity events to Kafka for external
// consumers (the upstream change-log service among them). Delivery is
// at-least-once; consumers dedupe on (organizationId, seq).
package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"syncline/internal/activity"
	activitymetrics "syncline/internal/activity/metrics"
	"syncline/pkg/platform/circuit"
)

// Emitter produces one serialized event to the relay topic. Keyed by
// organization ID so per-organization ordering survives partitioning.
type Emitter interface {
	Emit(ctx context.Context, key string, payload []byte) error
}

// Worker consumes activity events from a bus subscription and relays them.
// A failed produce is logged and dropped here; the event remains in the
// activity store, so downstream consumers recover via replay.
type Worker struct {
	emitter Emitter
	inbox   <-chan activity.Event
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *activitymetrics.Metrics
}

// Option configures the Worker.
type Option func(*Worker)

// WithMetrics sets the metrics collector.
func WithMetrics(m *activitymetrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(emitter Emitter, inbox <-chan activity.Event, breaker *circuit.Breaker, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		emitter: emitter,
		inbox:   inbox,
		breaker: breaker,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the inbox until the context is cancelled or the inbox closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.relay(ctx, event)
		}
	}
}

func (w *Worker) relay(ctx context.Context, event activity.Event) {
	if !w.breaker.Allow() {
		w.logger.Warn("relay circuit open, dropping event",
			"organization_id", event.OrganizationID,
			"seq", event.Seq,
		)
		if w.metrics != nil {
			w.metrics.IncRelayFailures()
		}
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("marshal relay event", "error", err, "event_id", event.ID)
		return
	}

	if err := w.emitter.Emit(ctx, event.OrganizationID, payload); err != nil {
		w.breaker.RecordFailure()
		w.logger.Error("relay produce failed",
			"error", err,
			"organization_id", event.OrganizationID,
			"seq", event.Seq,
		)
		if w.metrics != nil {
			w.metrics.IncRelayFailures()
		}
		return
	}

	w.breaker.RecordSuccess()
	if w.metrics != nil {
		w.metrics.IncRelayPublished()
	}
}
