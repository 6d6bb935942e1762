package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/otcheredev/equipment-console/internal/view"
	"github.com/rs/zerolog/log"
)

// AuditLogs reads the console audit trail
type AuditLogs interface {
	GetByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]models.AuditLog, error)
	GetByResourceID(ctx context.Context, tenantID, resourceID string) ([]models.AuditLog, error)
}

// APIHandler exposes equipment groups and the audit trail as JSON
type APIHandler struct {
	groups EquipmentGroups
	audit  AuditLogs
}

func NewAPIHandler(groups EquipmentGroups, audit AuditLogs) *APIHandler {
	return &APIHandler{groups: groups, audit: audit}
}

type nameRequest struct {
	Name string `json:"name"`
}

func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusUnprocessableEntity, view.ErrEmptyName.Error())
		return "", false
	}
	return name, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid group ID")
		return 0, false
	}
	return id, true
}

func (h *APIHandler) fail(w http.ResponseWriter, err error, msg string) {
	status, detail := statusFor(err)
	log.Error().Err(err).Int("status", status).Msg(msg)
	respondError(w, status, detail)
}

// ListGroups returns the tenant's equipment groups
func (h *APIHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to list equipment groups")
		return
	}
	if groups == nil {
		groups = []models.EquipmentGroup{}
	}
	respondJSON(w, http.StatusOK, groups)
}

// GetGroup returns one equipment group
func (h *APIHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	group, err := h.groups.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to get equipment group")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// CreateGroup creates an equipment group
func (h *APIHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	group, err := h.groups.Create(r.Context(), models.EquipmentGroupCreate{Name: name})
	if err != nil {
		h.fail(w, err, "Failed to create equipment group")
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

// UpdateGroup renames an equipment group
func (h *APIHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	group, err := h.groups.Update(r.Context(), id, models.EquipmentGroupUpdate{Name: name})
	if err != nil {
		h.fail(w, err, "Failed to update equipment group")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// DeleteGroup deletes an equipment group
func (h *APIHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	result, err := h.groups.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to delete equipment group")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AuditLogs returns the tenant's audit trail, newest first
func (h *APIHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, "Tenant not resolved")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	logs, err := h.audit.GetByTenantID(r.Context(), tenantID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read audit logs")
		respondError(w, http.StatusInternalServerError, "Failed to read audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// GroupAuditLogs returns the audit trail of one equipment group
func (h *APIHandler) GroupAuditLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, "Tenant not resolved")
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	logs, err := h.audit.GetByResourceID(r.Context(), tenantID, strconv.FormatInt(id, 10))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read audit logs")
		respondError(w, http.StatusInternalServerError, "Failed to read audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
