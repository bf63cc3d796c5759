package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// MembershipStore resolves which organizations a user belongs to. Memberships
// are snapshotted per connect/request; a short staleness window is acceptable.
type MembershipStore interface {
	IsMember(ctx context.Context, userID, tenantID string) (bool, error)
	OrganizationsForUser(ctx context.Context, userID string) ([]string, error)
}

// InMemoryMembershipStore keeps memberships in a map. It intentionally favors
// clarity over performance and backs tests and dev mode.
type InMemoryMembershipStore struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // userID -> set of tenant IDs
}

func NewInMemoryMembershipStore() *InMemoryMembershipStore {
	return &InMemoryMembershipStore{members: make(map[string]map[string]struct{})}
}

// Grant adds a membership. Test and seed helper.
func (s *InMemoryMembershipStore) Grant(userID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[userID] == nil {
		s.members[userID] = make(map[string]struct{})
	}
	s.members[userID][tenantID] = struct{}{}
}

// Revoke removes a membership.
func (s *InMemoryMembershipStore) Revoke(userID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[userID], tenantID)
}

func (s *InMemoryMembershipStore) IsMember(_ context.Context, userID, tenantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[userID][tenantID]
	return ok, nil
}

func (s *InMemoryMembershipStore) OrganizationsForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgs := make([]string, 0, len(s.members[userID]))
	for tenantID := range s.members[userID] {
		orgs = append(orgs, tenantID)
	}
	return orgs, nil
}

// PostgresMembershipStore reads the memberships table.
type PostgresMembershipStore struct {
	db *sql.DB
}

func NewPostgresMembershipStore(db *sql.DB) *PostgresMembershipStore {
	return &PostgresMembershipStore{db: db}
}

func (s *PostgresMembershipStore) IsMember(ctx context.Context, userID, tenantID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM memberships WHERE user_id = $1 AND organization_id = $2
		)
	`, userID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	return exists, nil
}

func (s *PostgresMembershipStore) OrganizationsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT organization_id FROM memberships WHERE user_id = $1 ORDER BY organization_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}
