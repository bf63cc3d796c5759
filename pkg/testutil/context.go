package testutil

import (
	"context"
	"time"

	"syncline/pkg/requestcontext"
)

// AuthenticatedContext returns a context carrying a resolved caller, the way
// the auth middleware would leave it for downstream services.
func AuthenticatedContext(userID string, orgs ...string) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithMemberships(ctx, orgs)
}

// AdminContext returns an authenticated context with the system-admin override.
func AdminContext(userID string) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithSystemAdmin(ctx, true)
}

// FrozenContext returns a context with a fixed request time for deterministic
// timestamps in assertions.
func FrozenContext(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
