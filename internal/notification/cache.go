package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SharedCache coordinates the cache handoff: when many subscribers redeem the
// same token, only the first acquires the fill lease and performs the real
// fetch; the rest poll the cached copy. Keys are scoped to the exact
// (entityType, entityId, version) tuple so stale versions never serve.
type SharedCache struct {
	rdb      redis.Cmdable
	leaseTTL time.Duration
	entryTTL time.Duration
}

func NewSharedCache(rdb redis.Cmdable) *SharedCache {
	return &SharedCache{
		rdb:      rdb,
		leaseTTL: 10 * time.Second,
		entryTTL: 5 * time.Minute,
	}
}

func entityKey(entityType, entityID string, version int64) string {
	return fmt.Sprintf("syncline:entity:%s:%s:v%d", entityType, entityID, version)
}

func leaseKey(entityType, entityID string, version int64) string {
	return fmt.Sprintf("syncline:lease:%s:%s:v%d", entityType, entityID, version)
}

// AcquireFill returns true if the caller won the fill lease and must perform
// the real fetch followed by Fill.
func (c *SharedCache) AcquireFill(ctx context.Context, claims *CacheClaims) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, leaseKey(claims.EntityType, claims.EntityID, claims.Version), claims.UserID, c.leaseTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire fill lease: %w", err)
	}
	return ok, nil
}

// Fill stores the fetched entity body for the other redeemers.
func (c *SharedCache) Fill(ctx context.Context, claims *CacheClaims, body []byte) error {
	if err := c.rdb.Set(ctx, entityKey(claims.EntityType, claims.EntityID, claims.Version), body, c.entryTTL).Err(); err != nil {
		return fmt.Errorf("fill shared cache: %w", err)
	}
	return nil
}

// Fetch returns the cached body, or (nil, false) when the filler has not
// completed yet.
func (c *SharedCache) Fetch(ctx context.Context, claims *CacheClaims) ([]byte, bool, error) {
	body, err := c.rdb.Get(ctx, entityKey(claims.EntityType, claims.EntityID, claims.Version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch shared cache: %w", err)
	}
	return body, true, nil
}
