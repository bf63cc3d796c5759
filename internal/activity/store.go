package activity

import "context"

// Store persists activity events. Append assigns the per-organization
// sequence number atomically with the insert; implementations must guarantee
// that two concurrent appends for the same organization never produce
// duplicate or out-of-order sequence numbers, and that appends for different
// organizations do not contend.
type Store interface {
	// Append persists the event and fills in ID, Seq, and OccurredAt (when
	// unset). Inside a SQL-backed unit of work the insert joins the ambient
	// transaction, so a rollback makes the event unobservable.
	Append(ctx context.Context, event *Event) error

	// ListSince returns events for one organization with seq > afterSeq, in
	// increasing seq order, at most limit entries. Used for catch-up replay.
	ListSince(ctx context.Context, organizationID string, afterSeq int64, limit int) ([]Event, error)

	// LatestSeq returns the highest assigned seq for the organization
	// (0 when none exist).
	LatestSeq(ctx context.Context, organizationID string) (int64, error)
}
