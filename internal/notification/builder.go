// Package notification derives the lean client-facing payload from an
// internal activity event. The payload is a pointer to "go fetch/refresh
// this", never the entity body: all reads stay behind the access-controlled
// fetch path.
package notification

import (
	"errors"
	"fmt"
	"sync"

	"syncline/internal/activity"
)

// Programmer errors surfaced by Build. Both indicate a producer bug, not a
// user-facing condition, and must fail loudly.
var (
	ErrNotEligible = errors.New("entity type is not realtime-eligible")
	ErrMissingTx   = errors.New("realtime event missing transaction descriptor")
)

// StreamNotification is the wire-level derivation of an activity event.
type StreamNotification struct {
	Action         activity.Action       `json:"action"`
	EntityType     string                `json:"entityType"`
	EntityID       string                `json:"entityId"`
	OrganizationID string                `json:"organizationId,omitempty"`
	Seq            int64                 `json:"seq"`
	Tx             activity.TxDescriptor `json:"tx"`
	CacheToken     string                `json:"cacheToken,omitempty"`
}

// BuildContext identifies the caller a cache token should be scoped to. When
// either field is empty the token is omitted (broadcast context with no single
// identity to scope it to).
type BuildContext struct {
	UserID          string
	OrganizationIDs []string
}

// Builder maps activity events to stream notifications for the registered
// realtime-eligible entity types.
type Builder struct {
	mu       sync.RWMutex
	eligible map[string]struct{}
	tokens   *TokenIssuer
}

// NewBuilder creates a builder. tokens may be nil to disable cache-token
// minting entirely.
func NewBuilder(tokens *TokenIssuer, eligibleTypes ...string) *Builder {
	eligible := make(map[string]struct{}, len(eligibleTypes))
	for _, et := range eligibleTypes {
		eligible[et] = struct{}{}
	}
	return &Builder{eligible: eligible, tokens: tokens}
}

// RegisterEntityType marks an entity type as realtime-eligible.
func (b *Builder) RegisterEntityType(entityType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eligible[entityType] = struct{}{}
}

// Eligible reports whether events of this entity type may produce notifications.
func (b *Builder) Eligible(entityType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.eligible[entityType]
	return ok
}

// Build derives the notification. Fails on non-eligible entity types and on
// events lacking a tx descriptor; realtime entities are required to carry
// concurrency metadata, so either failure is a produced-event defect.
func (b *Builder) Build(event activity.Event, bctx BuildContext) (StreamNotification, error) {
	if !b.Eligible(event.EntityType) {
		return StreamNotification{}, fmt.Errorf("%w: %s", ErrNotEligible, event.EntityType)
	}
	if event.Tx == nil {
		return StreamNotification{}, fmt.Errorf("%w: %s/%s seq=%d", ErrMissingTx, event.EntityType, event.EntityID, event.Seq)
	}

	n := StreamNotification{
		Action:         event.Action,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		OrganizationID: event.OrganizationID,
		Seq:            event.Seq,
		Tx:             *event.Tx,
	}

	if b.tokens != nil && bctx.UserID != "" && len(bctx.OrganizationIDs) > 0 {
		token, err := b.tokens.Mint(bctx.UserID, bctx.OrganizationIDs, event.EntityType, event.EntityID, event.Tx.Version)
		if err != nil {
			return StreamNotification{}, fmt.Errorf("mint cache token: %w", err)
		}
		n.CacheToken = token
	}
	return n, nil
}
