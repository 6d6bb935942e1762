package models

import "time"

// EquipmentGroup is a named grouping of equipment within a tenant
type EquipmentGroup struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EquipmentGroupCreate is the payload for creating an equipment group
type EquipmentGroupCreate struct {
	Name string `json:"name"`
}

// EquipmentGroupUpdate is the payload for renaming an equipment group
type EquipmentGroupUpdate struct {
	Name string `json:"name"`
}

// DeleteResult is returned by the API after a delete
type DeleteResult struct {
	Status string `json:"status"`
}
