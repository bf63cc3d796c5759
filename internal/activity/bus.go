package activity

import (
	"log/slog"
	"sync"
)

// Bus is the in-process fan-out between the publisher and its listeners (the
// stream dispatcher, the Kafka relay). Listeners subscribe for a buffered
// channel; a listener that falls behind has events dropped and logged rather
// than blocking the publisher - dropped events are catch-up recoverable via
// Store.ListSince.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a listener. The returned cancel func deregisters it and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Dispatch delivers the event to all current listeners without blocking.
func (b *Bus) Dispatch(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("activity listener behind, dropping event",
				"organization_id", event.OrganizationID,
				"seq", event.Seq,
				"entity_type", event.EntityType,
			)
		}
	}
}

// Close deregisters every listener.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
