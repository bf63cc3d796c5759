// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	orgs := requestcontext.Memberships(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithUserID(ctx, userID)
//	ctx = requestcontext.WithMemberships(ctx, orgs)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithSystemAdmin(ctx, true)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	membershipsKey struct{}
	systemAdminKey struct{}
	tenantIDKey    struct{}
	sourceIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyMemberships = membershipsKey{}
	ContextKeySystemAdmin = systemAdminKey{}
	ContextKeyTenantID    = tenantIDKey{}
	ContextKeySourceID    = sourceIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the empty string if not set (anonymous access).
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// Memberships retrieves the caller's organization IDs from the context.
// Returns nil if not set.
func Memberships(ctx context.Context) []string {
	if orgs, ok := ctx.Value(ContextKeyMemberships).([]string); ok {
		return orgs
	}
	return nil
}

// WithMemberships injects the caller's organization memberships into the context.
func WithMemberships(ctx context.Context, orgs []string) context.Context {
	return context.WithValue(ctx, ContextKeyMemberships, orgs)
}

// IsSystemAdmin reports whether the caller carries the system-admin override.
func IsSystemAdmin(ctx context.Context) bool {
	if admin, ok := ctx.Value(ContextKeySystemAdmin).(bool); ok {
		return admin
	}
	return false
}

// WithSystemAdmin injects the system-admin flag into the context.
func WithSystemAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, ContextKeySystemAdmin, admin)
}

// TenantID retrieves the resolved tenant ID for the current request.
// Set by the tenant middleware after validation; empty outside tenant routes.
func TenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(ContextKeyTenantID).(string); ok {
		return tenantID
	}
	return ""
}

// WithTenantID injects a validated tenant ID into the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ContextKeyTenantID, tenantID)
}

// SourceID retrieves the writing client instance ID, when a mutation envelope
// supplied one. Used to let clients suppress their own echoed notifications.
func SourceID(ctx context.Context) string {
	if sourceID, ok := ctx.Value(ContextKeySourceID).(string); ok {
		return sourceID
	}
	return ""
}

// WithSourceID injects the client instance ID into the context.
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, ContextKeySourceID, sourceID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
