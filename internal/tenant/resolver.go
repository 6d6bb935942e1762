// Package tenant resolves which tenant a signed-in user works in and keeps
// that choice for the lifetime of the console session.
package tenant

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrNoTenant is returned when a user has no tenant membership
var ErrNoTenant = errors.New("no tenant membership")

// MembershipStore lists the tenants of a user, oldest membership first
type MembershipStore interface {
	TenantIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// Resolver picks the tenant for a user
type Resolver struct {
	store MembershipStore
}

// NewResolver creates a new tenant resolver
func NewResolver(store MembershipStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the first tenant of the user. A lookup failure is logged
// and reported the same way as a user without memberships.
func (r *Resolver) Resolve(ctx context.Context, userID string) (string, bool) {
	tenantIDs, err := r.store.TenantIDsByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch tenant")
		return "", false
	}
	if len(tenantIDs) == 0 || tenantIDs[0] == "" {
		return "", false
	}
	if len(tenantIDs) > 1 {
		log.Warn().
			Str("user_id", userID).
			Strs("tenant_ids", tenantIDs).
			Msg("User belongs to several tenants, using the oldest membership")
	}
	return tenantIDs[0], true
}
