// Package entity implements versioned realtime entities: free-form attribute
// documents scoped to an organization, written through the optimistic-
// concurrency check and published to the activity bus on every accepted
// mutation.
package entity

import (
	"time"

	"syncline/internal/activity"
)

// Record is one realtime entity row. Tx carries the whole-row version plus
// per-field versions for callers that want finer-grained merge decisions.
type Record struct {
	ID             string                `json:"id"`
	OrganizationID string                `json:"organizationId"`
	EntityType     string                `json:"entityType"`
	Attrs          map[string]any        `json:"attrs"`
	Tx             activity.TxDescriptor `json:"tx"`
	Public         bool                  `json:"public,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Attrs = make(map[string]any, len(r.Attrs))
	for k, v := range r.Attrs {
		cp.Attrs[k] = v
	}
	cp.Tx.FieldVersions = make(map[string]int64, len(r.Tx.FieldVersions))
	for k, v := range r.Tx.FieldVersions {
		cp.Tx.FieldVersions[k] = v
	}
	return &cp
}
