package activity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	txcontext "syncline/pkg/platform/tx"
)

// InMemoryStore keeps events in per-organization slices. It intentionally
// favors clarity over performance and backs tests and dev mode.
//
// Sequence counters form an arena keyed by organization ID so unrelated
// organizations' writers never contend on one lock.
type InMemoryStore struct {
	mu   sync.RWMutex
	orgs map[string]*orgLog
}

type orgLog struct {
	mu     sync.Mutex
	seq    int64
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orgs: make(map[string]*orgLog)}
}

func (s *InMemoryStore) log(organizationID string) *orgLog {
	s.mu.RLock()
	l, ok := s.orgs[organizationID]
	s.mu.RUnlock()
	if ok {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.orgs[organizationID]; !ok {
		l = &orgLog{}
		s.orgs[organizationID] = l
	}
	return l
}

// Append assigns the next per-organization seq and stores the event. Inside a
// unit of work both steps wait for commit, so a rollback leaves no trace and
// seq order matches commit order.
func (s *InMemoryStore) Append(ctx context.Context, event *Event) error {
	if uow, ok := txcontext.Current(ctx); ok {
		uow.OnCommit(func() { s.append(event) })
		return nil
	}
	s.append(event)
	return nil
}

func (s *InMemoryStore) append(event *Event) {
	l := s.log(event.OrganizationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	event.Seq = l.seq
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	l.events = append(l.events, *event)
}

func (s *InMemoryStore) ListSince(_ context.Context, organizationID string, afterSeq int64, limit int) ([]Event, error) {
	l := s.log(organizationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	// Events are appended in seq order, so a binary search finds the cut.
	idx := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Seq > afterSeq
	})
	out := l.events[idx:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]Event, len(out))
	copy(result, out)
	return result, nil
}

func (s *InMemoryStore) LatestSeq(_ context.Context, organizationID string) (int64, error) {
	l := s.log(organizationID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq, nil
}
