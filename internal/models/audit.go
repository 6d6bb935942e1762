package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions recorded by the console
const (
	AuditActionLogin  = "login"
	AuditActionLogout = "logout"
	AuditActionCreate = "equipment_group.create"
	AuditActionUpdate = "equipment_group.update"
	AuditActionDelete = "equipment_group.delete"
)

// Audit statuses
const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// AuditLog represents a console action
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID     string    `gorm:"type:varchar(64);index" json:"tenant_id"`
	UserID       string    `gorm:"type:varchar(64);index" json:"user_id"`
	Action       string    `gorm:"type:varchar(100);not null;index" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string    `gorm:"type:varchar(255);index" json:"resource_id"`
	Status       string    `gorm:"type:varchar(20);index" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	Duration     int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "console_audit_logs"
}

// BeforeCreate hook
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
