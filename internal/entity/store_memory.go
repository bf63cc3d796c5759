package entity

import (
	"context"
	"sync"

	"syncline/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map guarded by one mutex, which makes the
// compare-and-set trivially atomic. It intentionally favors clarity over
// performance and backs tests and dev mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*Record
}

type recordKey struct {
	organizationID string
	entityType     string
	id             string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]*Record)}
}

func key(r *Record) recordKey {
	return recordKey{organizationID: r.OrganizationID, entityType: r.EntityType, id: r.ID}
}

func (s *InMemoryStore) Get(_ context.Context, organizationID, entityType, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordKey{organizationID, entityType, id}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.clone(), nil
}

func (s *InMemoryStore) Insert(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(record)
	if _, exists := s.records[k]; exists {
		return sentinel.ErrConflict
	}
	s.records[k] = record.clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, record *Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(record)
	current, exists := s.records[k]
	if !exists {
		return sentinel.ErrNotFound
	}
	if current.Tx.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	s.records[k] = record.clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, organizationID, entityType, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{organizationID, entityType, id}
	current, exists := s.records[k]
	if !exists {
		return sentinel.ErrNotFound
	}
	if current.Tx.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	delete(s.records, k)
	return nil
}
