package entity

import (
	"context"
	"errors"
	"reflect"

	"syncline/internal/activity"
	"syncline/internal/stx"
	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/platform/sentinel"
	"syncline/pkg/requestcontext"
)

// Service runs the optimistic-concurrency write path: version check, row
// update, and activity publication, all inside the caller's scoped unit of
// work. The store's compare-and-set is the authoritative race arbiter; the
// service-level comparison exists only to fail fast with the current version
// in the conflict details.
type Service struct {
	store     Store
	publisher *activity.Publisher
}

func NewService(store Store, publisher *activity.Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// Get fetches one record.
func (s *Service) Get(ctx context.Context, organizationID, entityType, id string) (*Record, error) {
	record, err := s.store.Get(ctx, organizationID, entityType, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetch entity")
	}
	return record, nil
}

// Create inserts a new record at version 1. The envelope must declare
// lastReadVersion 0; anything else means the client thinks it is updating.
func (s *Service) Create(ctx context.Context, organizationID, entityType, id string, attrs map[string]any, env stx.Envelope) (*Record, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.LastReadVersion != 0 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "create requires stx.lastReadVersion 0")
	}

	now := requestcontext.Now(ctx)
	fieldVersions := make(map[string]int64, len(attrs))
	for field := range attrs {
		fieldVersions[field] = 1
	}
	record := &Record{
		ID:             id,
		OrganizationID: organizationID,
		EntityType:     entityType,
		Attrs:          attrs,
		Tx: activity.TxDescriptor{
			ID:            env.MutationID,
			SourceID:      env.SourceID,
			Version:       1,
			FieldVersions: fieldVersions,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "entity already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert entity")
	}

	if err := s.publish(ctx, record, activity.ActionCreate); err != nil {
		return nil, err
	}
	return record, nil
}

// Update applies attrs over the current record iff the client's
// lastReadVersion matches the persisted version. On acceptance the version
// increments by exactly one and fieldVersions advance for changed fields
// only. Stale writes are rejected as conflicts carrying the current version;
// no automatic merge is attempted.
func (s *Service) Update(ctx context.Context, organizationID, entityType, id string, attrs map[string]any, env stx.Envelope) (*Record, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, organizationID, entityType, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetch entity")
	}
	if current.Tx.Version != env.LastReadVersion {
		return nil, staleWrite(current.Tx.Version)
	}

	next := current.clone()
	next.Tx.ID = env.MutationID
	next.Tx.SourceID = env.SourceID
	next.Tx.Version = current.Tx.Version + 1
	next.UpdatedAt = requestcontext.Now(ctx)
	for field, value := range attrs {
		if existing, ok := next.Attrs[field]; ok && reflect.DeepEqual(existing, value) {
			continue
		}
		next.Attrs[field] = value
		next.Tx.FieldVersions[field] = next.Tx.Version
	}

	if err := s.store.Update(ctx, next, env.LastReadVersion); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			// Lost the race after the fast-path check passed.
			return nil, staleWrite(currentVersionAfterRace(ctx, s.store, organizationID, entityType, id))
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update entity")
		}
	}

	if err := s.publish(ctx, next, activity.ActionUpdate); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes the record under the same version check as Update.
func (s *Service) Delete(ctx context.Context, organizationID, entityType, id string, env stx.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	current, err := s.store.Get(ctx, organizationID, entityType, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "fetch entity")
	}
	if current.Tx.Version != env.LastReadVersion {
		return staleWrite(current.Tx.Version)
	}

	if err := s.store.Delete(ctx, organizationID, entityType, id, env.LastReadVersion); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return staleWrite(currentVersionAfterRace(ctx, s.store, organizationID, entityType, id))
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "entity not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete entity")
		}
	}

	tombstone := current.clone()
	tombstone.Tx.ID = env.MutationID
	tombstone.Tx.SourceID = env.SourceID
	tombstone.Tx.Version = current.Tx.Version + 1
	return s.publish(ctx, tombstone, activity.ActionDelete)
}

func (s *Service) publish(ctx context.Context, record *Record, action activity.Action) error {
	tx := record.Tx
	event := &activity.Event{
		EntityType:     record.EntityType,
		EntityID:       record.ID,
		Action:         action,
		OrganizationID: record.OrganizationID,
		Tx:             &tx,
		OccurredAt:     requestcontext.Now(ctx),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "publish activity event")
	}
	return nil
}

func staleWrite(currentVersion int64) error {
	return dErrors.New(dErrors.CodeConflict, "stale write, reread and retry").
		WithDetails(map[string]any{"currentVersion": currentVersion})
}

// currentVersionAfterRace best-effort reads the winner's version for the
// conflict details; zero when the row vanished meanwhile.
func currentVersionAfterRace(ctx context.Context, store Store, organizationID, entityType, id string) int64 {
	record, err := store.Get(ctx, organizationID, entityType, id)
	if err != nil {
		return 0
	}
	return record.Tx.Version
}
