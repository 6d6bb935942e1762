package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationMember associates a user with a tenant
type OrganizationMember struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides the table name
func (OrganizationMember) TableName() string {
	return "organization_members"
}
