package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/otcheredev/equipment-console/internal/apiclient"
	"github.com/otcheredev/equipment-console/internal/cache"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/otcheredev/equipment-console/internal/query"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/rs/zerolog/log"
)

const equipmentGroupsPath = "/equipment-groups"

// AuditRecorder stores console audit entries
type AuditRecorder interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// EquipmentGroupService exposes typed list/create/update/delete operations
// on equipment groups. Reads go through the query cache; writes invalidate it.
type EquipmentGroupService struct {
	gateway *apiclient.Gateway
	queries *query.Client
	audit   AuditRecorder

	creating *pending
	updating *pending
	deleting *pending
}

// NewEquipmentGroupService creates a new equipment group service. audit may be nil.
func NewEquipmentGroupService(gateway *apiclient.Gateway, queries *query.Client, audit AuditRecorder) *EquipmentGroupService {
	return &EquipmentGroupService{
		gateway:  gateway,
		queries:  queries,
		audit:    audit,
		creating: newPending(),
		updating: newPending(),
		deleting: newPending(),
	}
}

// RetryableRead reports whether a failed read is worth one more attempt:
// transport failures and 5xx/429 responses are, auth and client errors are not.
func RetryableRead(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return false
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// listKey scopes the cached list to the caller's tenant
func listKey(ctx context.Context) string {
	tenantID, _ := tenant.FromContext(ctx)
	return cache.Key("query", "equipment-groups", tenantID)
}

func groupPath(id int64) string {
	return equipmentGroupsPath + "/" + strconv.FormatInt(id, 10)
}

// List returns all equipment groups of the caller's tenant
func (s *EquipmentGroupService) List(ctx context.Context) ([]models.EquipmentGroup, error) {
	groups, err := query.Fetch(ctx, s.queries, listKey(ctx), func(ctx context.Context) ([]models.EquipmentGroup, error) {
		return apiclient.Call[[]models.EquipmentGroup](ctx, s.gateway, http.MethodGet, equipmentGroupsPath, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment groups: %w", err)
	}
	return groups, nil
}

// Get returns one equipment group, preferring the cached list
func (s *EquipmentGroupService) Get(ctx context.Context, id int64) (*models.EquipmentGroup, error) {
	if groups, err := s.List(ctx); err == nil {
		for i := range groups {
			if groups[i].ID == id {
				return &groups[i], nil
			}
		}
	}

	group, err := apiclient.Call[models.EquipmentGroup](ctx, s.gateway, http.MethodGet, groupPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment group %d: %w", id, err)
	}
	return &group, nil
}

// Create creates an equipment group
func (s *EquipmentGroupService) Create(ctx context.Context, req models.EquipmentGroupCreate) (*models.EquipmentGroup, error) {
	defer s.creating.begin(ctx)()

	start := time.Now()
	group, err := apiclient.Call[models.EquipmentGroup](ctx, s.gateway, http.MethodPost, equipmentGroupsPath, req)
	resourceID := ""
	if err == nil {
		resourceID = strconv.FormatInt(group.ID, 10)
	}
	s.record(ctx, models.AuditActionCreate, resourceID, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create equipment group: %w", err)
	}

	s.invalidate(ctx)
	return &group, nil
}

// Update renames an equipment group
func (s *EquipmentGroupService) Update(ctx context.Context, id int64, req models.EquipmentGroupUpdate) (*models.EquipmentGroup, error) {
	defer s.updating.begin(ctx)()

	start := time.Now()
	group, err := apiclient.Call[models.EquipmentGroup](ctx, s.gateway, http.MethodPatch, groupPath(id), req)
	s.record(ctx, models.AuditActionUpdate, strconv.FormatInt(id, 10), start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to update equipment group %d: %w", id, err)
	}

	s.invalidate(ctx)
	return &group, nil
}

// Delete deletes an equipment group
func (s *EquipmentGroupService) Delete(ctx context.Context, id int64) (*models.DeleteResult, error) {
	defer s.deleting.begin(ctx)()

	start := time.Now()
	result, err := apiclient.Call[models.DeleteResult](ctx, s.gateway, http.MethodDelete, groupPath(id), nil)
	s.record(ctx, models.AuditActionDelete, strconv.FormatInt(id, 10), start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to delete equipment group %d: %w", id, err)
	}

	s.invalidate(ctx)
	return &result, nil
}

// Creating reports whether the caller's session has a create in flight
func (s *EquipmentGroupService) Creating(ctx context.Context) bool { return s.creating.active(ctx) }

// Updating reports whether the caller's session has an update in flight
func (s *EquipmentGroupService) Updating(ctx context.Context) bool { return s.updating.active(ctx) }

// Deleting reports whether the caller's session has a delete in flight
func (s *EquipmentGroupService) Deleting(ctx context.Context) bool { return s.deleting.active(ctx) }

func (s *EquipmentGroupService) invalidate(ctx context.Context) {
	if err := s.queries.Invalidate(ctx, listKey(ctx)); err != nil {
		log.Error().Err(err).Msg("Failed to invalidate equipment group list")
	}
}

func (s *EquipmentGroupService) record(ctx context.Context, action, resourceID string, start time.Time, opErr error) {
	if s.audit == nil {
		return
	}
	entry := auditEntry(ctx, action, start, opErr)
	entry.ResourceType = "equipment_group"
	entry.ResourceID = resourceID
	if err := s.audit.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to write audit log")
	}
}
