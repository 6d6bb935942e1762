package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/equipment-console/internal/models"
	"gorm.io/gorm"
)

// MembershipRepository reads tenant memberships
type MembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// TenantIDsByUser returns the tenants a user belongs to, oldest membership first.
// A user without memberships yields an empty slice and a nil error.
func (r *MembershipRepository) TenantIDsByUser(ctx context.Context, userID string) ([]string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.OrganizationMember{}).
		Where("user_id = ?", uid).
		Order("created_at ASC, tenant_id ASC").
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to get memberships: %w", err)
	}

	out := make([]string, len(tenantIDs))
	for i, id := range tenantIDs {
		out[i] = id.String()
	}
	return out, nil
}
