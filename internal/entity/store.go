package entity

import "context"

// Store persists entity records. Version checks happen atomically inside the
// store (compare-and-set) so two writers racing on the same base version
// produce exactly one success and one sentinel.ErrConflict.
type Store interface {
	Get(ctx context.Context, organizationID, entityType, id string) (*Record, error)

	// Insert fails with sentinel.ErrConflict when the record already exists.
	Insert(ctx context.Context, record *Record) error

	// Update replaces the record iff the persisted version equals
	// expectedVersion; sentinel.ErrNotFound when absent, sentinel.ErrConflict
	// on a version mismatch.
	Update(ctx context.Context, record *Record, expectedVersion int64) error

	// Delete removes the record under the same version check as Update.
	Delete(ctx context.Context, organizationID, entityType, id string, expectedVersion int64) error
}
