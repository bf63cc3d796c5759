// Package activity records committed entity mutations as durable, ordered
// events and fans them in to in-process listeners after commit.
package activity

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of mutation an event describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// TxDescriptor is the optimistic-concurrency metadata attached to an entity
// row and echoed in every event. Version is monotonic per entity;
// FieldVersions maps each field to the version at which it last changed so
// clients can make per-field merge decisions.
type TxDescriptor struct {
	ID            string           `json:"id"`
	SourceID      string           `json:"sourceId"`
	Version       int64            `json:"version"`
	FieldVersions map[string]int64 `json:"fieldVersions,omitempty"`
}

// Event is one committed entity mutation. Seq is strictly increasing within
// an organization scope; events for different organizations share no sequence
// space. OrganizationID is empty only for non-tenant-scoped entities, which
// are never dispatched to subscribers.
type Event struct {
	ID             uuid.UUID     `json:"id"`
	Seq            int64         `json:"seq"`
	EntityType     string        `json:"entityType"`
	EntityID       string        `json:"entityId"`
	Action         Action        `json:"action"`
	OrganizationID string        `json:"organizationId,omitempty"`
	Tx             *TxDescriptor `json:"tx,omitempty"`
	OccurredAt     time.Time     `json:"occurredAt"`
}
