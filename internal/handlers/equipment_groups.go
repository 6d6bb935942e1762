package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/equipment-console/internal/apiclient"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/otcheredev/equipment-console/internal/view"
	"github.com/rs/zerolog/log"
)

const masterPath = "/master/equipment-groups"

// EquipmentGroups is the equipment group resource as used by the handlers
type EquipmentGroups interface {
	view.Mutator
	List(ctx context.Context) ([]models.EquipmentGroup, error)
	Get(ctx context.Context, id int64) (*models.EquipmentGroup, error)
	Creating(ctx context.Context) bool
	Updating(ctx context.Context) bool
	Deleting(ctx context.Context) bool
}

// EquipmentGroupHandler serves the equipment group master page
type EquipmentGroupHandler struct {
	groups EquipmentGroups
}

func NewEquipmentGroupHandler(groups EquipmentGroups) *EquipmentGroupHandler {
	return &EquipmentGroupHandler{groups: groups}
}

type masterPage struct {
	Groups       []models.EquipmentGroup
	LoadError    bool
	Page         *view.Page
	Notification view.Notification
	Saving       bool
	Deleting     bool
}

func (h *EquipmentGroupHandler) render(w http.ResponseWriter, r *http.Request, status int, p *view.Page, n view.Notification) {
	data := &masterPage{
		Page:         p,
		Notification: n,
		Saving:       h.groups.Creating(r.Context()) || h.groups.Updating(r.Context()),
		Deleting:     h.groups.Deleting(r.Context()),
	}

	groups, err := h.groups.List(r.Context())
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		log.Error().Err(err).Msg("Failed to list equipment groups")
		data.LoadError = true
		if status == http.StatusOK {
			status, _ = statusFor(err)
		}
	}
	data.Groups = groups

	renderHTML(w, status, "equipment_groups", data)
}

// Page renders the table and, per the query string, an open dialog
func (h *EquipmentGroupHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	p := &view.Page{}
	n := view.PopFlash(w, r)

	switch view.ParseMode(q.Get("dialog")) {
	case view.ModeCreate:
		p.OpenCreate()
	case view.ModeEdit:
		id, err := strconv.ParseInt(q.Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid group ID", http.StatusBadRequest)
			return
		}
		group, err := h.groups.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("id", id).Msg("Equipment group not found")
			n = view.Error(view.MsgLoadFailed)
			break
		}
		p.OpenEdit(*group)
	}

	if raw := q.Get("delete"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid group ID", http.StatusBadRequest)
			return
		}
		group, err := h.groups.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("id", id).Msg("Equipment group not found")
			n = view.Error(view.MsgLoadFailed)
		} else {
			p.OpenDelete(*group)
		}
	}

	h.render(w, r, http.StatusOK, p, n)
}

// Save handles the create/edit dialog form
func (h *EquipmentGroupHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	p := &view.Page{}
	switch view.ParseMode(r.PostForm.Get("mode")) {
	case view.ModeCreate:
		p.OpenCreate()
	case view.ModeEdit:
		id, err := strconv.ParseInt(r.PostForm.Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid group ID", http.StatusBadRequest)
			return
		}
		p.OpenEdit(models.EquipmentGroup{ID: id})
	default:
		http.Error(w, "Invalid mode", http.StatusBadRequest)
		return
	}
	p.Name = r.PostForm.Get("name")

	n, err := p.Submit(r.Context(), h.groups)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, view.ErrEmptyName) {
			status, _ = statusFor(err)
		}
		h.render(w, r, status, p, n)
		return
	}

	view.SetFlash(w, n)
	http.Redirect(w, r, masterPath, http.StatusSeeOther)
}

// Delete handles the delete confirmation form
func (h *EquipmentGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	group := models.EquipmentGroup{ID: id}
	if found, err := h.groups.Get(ctx, id); err == nil {
		group = *found
	}

	p := &view.Page{}
	p.OpenDelete(group)
	n, err := p.ConfirmDelete(ctx, h.groups)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		status, _ := statusFor(err)
		h.render(w, r, status, p, n)
		return
	}

	view.SetFlash(w, n)
	http.Redirect(w, r, masterPath, http.StatusSeeOther)
}
