package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"syncline/internal/notification"
)

// Subscriber is one live push connection. Memberships are snapshotted at
// connect time and revalidated on each dispatch tick; cursors track the last
// delivered seq per organization so duplicates across reconnects stay
// idempotently ignorable.
type Subscriber struct {
	ID          uuid.UUID
	UserID      string
	ConnectedAt time.Time

	mu      sync.Mutex
	orgs    map[string]struct{}
	cursors map[string]int64

	out       chan notification.StreamNotification
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(userID string, orgs []string, cursors map[string]int64, buffer int) *Subscriber {
	orgSet := make(map[string]struct{}, len(orgs))
	for _, org := range orgs {
		orgSet[org] = struct{}{}
	}
	cur := make(map[string]int64, len(cursors))
	for org, seq := range cursors {
		cur[org] = seq
	}
	return &Subscriber{
		ID:          uuid.New(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		orgs:        orgSet,
		cursors:     cur,
		out:         make(chan notification.StreamNotification, buffer),
		done:        make(chan struct{}),
	}
}

// Notifications is the connection's outbound buffer.
func (s *Subscriber) Notifications() <-chan notification.StreamNotification {
	return s.out
}

// Done closes when the subscriber has been torn down.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Organizations returns the current membership snapshot.
func (s *Subscriber) Organizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	orgs := make([]string, 0, len(s.orgs))
	for org := range s.orgs {
		orgs = append(orgs, org)
	}
	return orgs
}

// LastDeliveredSeq returns the cursor for one organization.
func (s *Subscriber) LastDeliveredSeq(organizationID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[organizationID]
}

// advance moves the cursor forward. Returns false when seq is not beyond the
// cursor, which marks the event as a duplicate for this connection.
func (s *Subscriber) advance(organizationID string, seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.cursors[organizationID] {
		return false
	}
	s.cursors[organizationID] = seq
	return true
}

// inOrg reports whether the subscriber still holds the organization.
func (s *Subscriber) inOrg(organizationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orgs[organizationID]
	return ok
}

// dropOrg removes a revoked organization from the snapshot.
func (s *Subscriber) dropOrg(organizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orgs, organizationID)
}

// deliver enqueues without blocking. Returns false when the buffer is full,
// which the manager treats like a broken pipe: this connection is torn down,
// others are unaffected.
func (s *Subscriber) deliver(n notification.StreamNotification) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- n:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
