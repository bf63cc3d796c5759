package tenant

import (
	"context"

	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/requestcontext"
)

// Resolver authorizes callers against tenants using their resolved identity
// in the request context.
type Resolver struct {
	memberships MembershipStore
}

func NewResolver(memberships MembershipStore) *Resolver {
	return &Resolver{memberships: memberships}
}

// Authorize checks that the ambient caller may act inside the tenant:
// membership-in-tenant or the system-admin override. The caller must already
// be resolved by the auth middleware.
func (r *Resolver) Authorize(ctx context.Context, tenantID string) error {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity not resolved")
	}
	if requestcontext.IsSystemAdmin(ctx) {
		return nil
	}

	member, err := r.memberships.IsMember(ctx, userID, tenantID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "membership check failed")
	}
	if !member {
		return dErrors.New(dErrors.CodeForbidden, "no membership in tenant")
	}
	return nil
}

// Memberships returns the caller's current organization set, for subscriber
// registration and dispatch-time revalidation.
func (r *Resolver) Memberships(ctx context.Context, userID string) ([]string, error) {
	orgs, err := r.memberships.OrganizationsForUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "membership lookup failed")
	}
	return orgs, nil
}
