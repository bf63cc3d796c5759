package activity

import (
	"context"
	"fmt"
	"log/slog"

	activitymetrics "syncline/internal/activity/metrics"
	"syncline/pkg/platform/sentinel"
	txcontext "syncline/pkg/platform/tx"
)

// Publisher appends one event per committed entity mutation. Publish is only
// legal inside a unit of work: the append rides the caller's transaction and
// the bus dispatch is deferred to an after-commit hook, so a rolled-back
// mutation never produces an observable event and listeners see events in
// commit order.
type Publisher struct {
	store   Store
	bus     *Bus
	logger  *slog.Logger
	metrics *activitymetrics.Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithMetrics sets the metrics collector.
func WithMetrics(m *activitymetrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store Store, bus *Bus, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{store: store, bus: bus, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish validates the event, appends it within the ambient transaction, and
// defers dispatch to an after-commit hook. The hook dispatches synchronously,
// so events enter the bus in commit order; Bus.Dispatch never blocks, which
// keeps the commit path fast. Dispatch failures never surface to the caller;
// any listener can reconstruct missed events from Store.ListSince.
func (p *Publisher) Publish(ctx context.Context, event *Event) error {
	uow, ok := txcontext.Current(ctx)
	if !ok {
		return sentinel.ErrNoTransaction
	}
	if !event.Action.Valid() {
		return fmt.Errorf("invalid activity action %q", event.Action)
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	// Copied inside the hook: the in-memory store assigns the seq in its own
	// commit hook, registered just above by Append.
	uow.OnCommit(func() {
		p.dispatch(*event)
	})
	return nil
}

func (p *Publisher) dispatch(event Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("activity dispatch panic",
				"panic", r,
				"organization_id", event.OrganizationID,
				"seq", event.Seq,
			)
		}
	}()
	p.bus.Dispatch(event)
	if p.metrics != nil {
		p.metrics.IncEventsPublished()
	}
}

// LatestSince returns ordered events for catch-up. Thin passthrough kept on
// the publisher so listeners only need one dependency.
func (p *Publisher) LatestSince(ctx context.Context, organizationID string, afterSeq int64, limit int) ([]Event, error) {
	return p.store.ListSince(ctx, organizationID, afterSeq, limit)
}
