// Package stream owns live push connections: registration, reconnect
// catch-up, live fan-out, and teardown.
//
// Per-connection lifecycle: connecting -> catching-up -> live -> closed.
// Ordering is per-organization FIFO; no cross-organization order is promised.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"syncline/internal/activity"
	"syncline/internal/notification"
	streammetrics "syncline/internal/stream/metrics"
)

// MembershipResolver re-resolves a user's organizations. Called at connect
// time and again on each dispatch tick, so a membership revoked mid-connection
// stops delivery without waiting for a reconnect.
type MembershipResolver interface {
	Memberships(ctx context.Context, userID string) ([]string, error)
}

// Manager registers subscribers and fans built notifications out to them.
type Manager struct {
	store   activity.Store
	builder *notification.Builder
	members MembershipResolver
	logger  *slog.Logger
	metrics *streammetrics.Metrics

	bufferSize   int
	catchUpLimit int

	mu     sync.RWMutex
	byOrg  map[string]map[*Subscriber]struct{}
	all    map[*Subscriber]struct{}
	closed bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithMetrics sets the metrics collector.
func WithMetrics(m *streammetrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithBufferSize sets the per-connection outbound buffer.
func WithBufferSize(n int) Option {
	return func(mgr *Manager) {
		if n > 0 {
			mgr.bufferSize = n
		}
	}
}

// WithCatchUpLimit bounds the reconnect replay per organization.
func WithCatchUpLimit(n int) Option {
	return func(mgr *Manager) {
		if n > 0 {
			mgr.catchUpLimit = n
		}
	}
}

func NewManager(store activity.Store, builder *notification.Builder, members MembershipResolver, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		builder:      builder,
		members:      members,
		logger:       logger,
		bufferSize:   64,
		catchUpLimit: 1000,
		byOrg:        make(map[string]map[*Subscriber]struct{}),
		all:          make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe resolves the caller's memberships, registers the connection, and
// replays every event past the client's declared cursors. The replay slice is
// returned for the transport to write before it starts draining the live
// buffer; registration happens before the replay reads so no event falls in
// the gap. A live event landing mid-replay gap-fills older seqs from the
// store, and duplicates on either path are suppressed via cursors.
func (m *Manager) Subscribe(ctx context.Context, userID string, cursors map[string]int64) (*Subscriber, []notification.StreamNotification, error) {
	orgs, err := m.members.Memberships(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	sub := newSubscriber(userID, orgs, cursors, m.bufferSize)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("stream manager is shut down")
	}
	m.all[sub] = struct{}{}
	for _, org := range orgs {
		if m.byOrg[org] == nil {
			m.byOrg[org] = make(map[*Subscriber]struct{})
		}
		m.byOrg[org][sub] = struct{}{}
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncSubscribers()
	}

	replay, err := m.catchUp(ctx, sub, orgs)
	if err != nil {
		m.Unsubscribe(sub)
		return nil, nil, err
	}
	return sub, replay, nil
}

// catchUp replays missed events per organization in increasing seq order.
func (m *Manager) catchUp(ctx context.Context, sub *Subscriber, orgs []string) ([]notification.StreamNotification, error) {
	sorted := slices.Clone(orgs)
	slices.Sort(sorted)

	var replay []notification.StreamNotification
	for _, org := range sorted {
		events, err := m.store.ListSince(ctx, org, sub.LastDeliveredSeq(org), m.catchUpLimit)
		if err != nil {
			return nil, fmt.Errorf("catch-up for %s: %w", org, err)
		}
		for _, ev := range events {
			n, ok := m.buildFor(sub, ev)
			if !ok {
				continue
			}
			if !sub.advance(ev.OrganizationID, ev.Seq) {
				continue // already enqueued live during this replay
			}
			replay = append(replay, n)
		}
		if m.metrics != nil {
			m.metrics.ObserveCatchUpBatch(len(events))
		}
	}
	return replay, nil
}

// Run consumes the activity bus subscription until the context is cancelled
// or the inbox closes.
func (m *Manager) Run(ctx context.Context, inbox <-chan activity.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-inbox:
			if !ok {
				return nil
			}
			m.dispatch(ctx, event)
		}
	}
}

// dispatch fans one committed event out to the organization's subscribers.
// A failed delivery tears down that one connection only.
func (m *Manager) dispatch(ctx context.Context, event activity.Event) {
	if event.OrganizationID == "" {
		return // non-tenant-scoped events have no subscribers
	}
	if !m.builder.Eligible(event.EntityType) {
		return
	}

	m.mu.RLock()
	subs := make([]*Subscriber, 0, len(m.byOrg[event.OrganizationID]))
	for sub := range m.byOrg[event.OrganizationID] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if !m.stillMember(ctx, sub, event.OrganizationID) {
			continue
		}
		m.deliverInOrder(ctx, sub, event)
	}
}

// deliverInOrder pushes one committed event to a single connection without
// ever moving its cursor past a seq it has not seen. Commit hooks from
// concurrent requests can race each other onto the bus, so a higher seq may
// arrive first; the gap is filled from the store before the newer event goes
// out. An out-of-order arrival whose seq is already covered is a duplicate.
func (m *Manager) deliverInOrder(ctx context.Context, sub *Subscriber, event activity.Event) {
	org := event.OrganizationID
	cursor := sub.LastDeliveredSeq(org)
	if event.Seq <= cursor {
		return // duplicate for this connection
	}

	pending := []activity.Event{event}
	if event.Seq > cursor+1 {
		missed, err := m.store.ListSince(ctx, org, cursor, m.catchUpLimit)
		if err != nil {
			// Deferring keeps the cursor behind the gap; the next event for
			// this organization retries the fill, and a reconnect catch-up
			// recovers regardless.
			m.logger.Warn("gap fill failed, deferring delivery",
				"error", err,
				"organization_id", org,
				"seq", event.Seq,
			)
			return
		}
		pending = missed
	}

	for _, ev := range pending {
		if !sub.advance(ev.OrganizationID, ev.Seq) {
			continue
		}
		if !m.builder.Eligible(ev.EntityType) {
			continue
		}
		n, ok := m.buildFor(sub, ev)
		if !ok {
			continue
		}
		if !sub.deliver(n) {
			m.logger.Warn("subscriber buffer full, tearing down connection",
				"subscriber_id", sub.ID,
				"user_id", sub.UserID,
			)
			if m.metrics != nil {
				m.metrics.IncDropped()
			}
			m.Unsubscribe(sub)
			return
		}
		if m.metrics != nil {
			m.metrics.IncDelivered()
		}
	}
}

// stillMember revalidates the subscriber's membership for the event's
// organization. On revocation the organization is dropped from the snapshot
// and the registry; the connection itself stays up for its remaining
// organizations. Resolver failures keep the snapshot (stale delivery beats
// dropping events on a transient lookup error).
func (m *Manager) stillMember(ctx context.Context, sub *Subscriber, organizationID string) bool {
	if !sub.inOrg(organizationID) {
		return false
	}
	orgs, err := m.members.Memberships(ctx, sub.UserID)
	if err != nil {
		m.logger.Warn("membership revalidation failed, keeping snapshot",
			"error", err,
			"user_id", sub.UserID,
		)
		return true
	}
	if slices.Contains(orgs, organizationID) {
		return true
	}

	sub.dropOrg(organizationID)
	m.mu.Lock()
	if set, ok := m.byOrg[organizationID]; ok {
		delete(set, sub)
	}
	m.mu.Unlock()
	m.logger.Info("membership revoked mid-connection, stopping delivery",
		"user_id", sub.UserID,
		"organization_id", organizationID,
	)
	return false
}

func (m *Manager) buildFor(sub *Subscriber, event activity.Event) (notification.StreamNotification, bool) {
	n, err := m.builder.Build(event, notification.BuildContext{
		UserID:          sub.UserID,
		OrganizationIDs: sub.Organizations(),
	})
	if err != nil {
		// Producer defect (ineligible type or missing tx); loud, but one bad
		// event must not kill the connection.
		m.logger.Error("notification build failed",
			"error", err,
			"entity_type", event.EntityType,
			"seq", event.Seq,
		)
		return notification.StreamNotification{}, false
	}
	return n, true
}

// Unsubscribe deregisters and closes the connection. Safe to call twice.
func (m *Manager) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	_, registered := m.all[sub]
	delete(m.all, sub)
	for org, set := range m.byOrg {
		delete(set, sub)
		if len(set) == 0 {
			delete(m.byOrg, org)
		}
	}
	m.mu.Unlock()

	sub.close()
	if registered && m.metrics != nil {
		m.metrics.DecSubscribers()
	}
}

// Close tears down every subscriber; used on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	subs := make([]*Subscriber, 0, len(m.all))
	for sub := range m.all {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		m.Unsubscribe(sub)
	}
}
