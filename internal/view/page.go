// Package view holds the state of the equipment group master page: which
// dialog is open, what the form holds and the notification to show.
package view

import (
	"context"
	"errors"
	"strings"

	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrEmptyName is returned when a group name is empty or only whitespace
var ErrEmptyName = errors.New("group name is required")

// Mode is the state of the create/edit dialog
type Mode int

const (
	ModeClosed Mode = iota
	ModeCreate
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	default:
		return "closed"
	}
}

// ParseMode parses the mode names used in forms and query strings
func ParseMode(s string) Mode {
	switch s {
	case "create":
		return ModeCreate
	case "edit":
		return ModeEdit
	default:
		return ModeClosed
	}
}

// Mutator performs equipment group writes
type Mutator interface {
	Create(ctx context.Context, req models.EquipmentGroupCreate) (*models.EquipmentGroup, error)
	Update(ctx context.Context, id int64, req models.EquipmentGroupUpdate) (*models.EquipmentGroup, error)
	Delete(ctx context.Context, id int64) (*models.DeleteResult, error)
}

// Page is the dialog state of the master page. The create/edit dialog and
// the delete confirmation are independent.
type Page struct {
	Mode     Mode
	Selected *models.EquipmentGroup
	Name     string

	DeleteOpen bool
	ToDelete   *models.EquipmentGroup
}

// OpenCreate opens the dialog with an empty form
func (p *Page) OpenCreate() {
	p.Mode = ModeCreate
	p.Selected = nil
	p.Name = ""
}

// OpenEdit opens the dialog with the name of g preloaded
func (p *Page) OpenEdit(g models.EquipmentGroup) {
	p.Mode = ModeEdit
	p.Selected = &g
	p.Name = g.Name
}

// Close closes the dialog and clears the form
func (p *Page) Close() {
	p.Mode = ModeClosed
	p.Selected = nil
	p.Name = ""
}

// DialogOpen reports whether the create/edit dialog is shown
func (p *Page) DialogOpen() bool {
	return p.Mode != ModeClosed
}

// Submit validates the form and runs the create or update. The dialog closes
// on success only. An empty name fails with ErrEmptyName without calling m.
func (p *Page) Submit(ctx context.Context, m Mutator) (Notification, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Error(MsgNameRequired), ErrEmptyName
	}

	var (
		n   Notification
		err error
	)
	switch {
	case p.Mode == ModeCreate:
		_, err = m.Create(ctx, models.EquipmentGroupCreate{Name: name})
		n = Success(MsgCreated)
	case p.Mode == ModeEdit && p.Selected != nil:
		_, err = m.Update(ctx, p.Selected.ID, models.EquipmentGroupUpdate{Name: name})
		n = Success(MsgUpdated)
	default:
		return Notification{}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("mode", p.Mode.String()).Msg("Equipment group save failed")
		return Error(MsgSaveFailed), err
	}

	p.Close()
	return n, nil
}

// OpenDelete asks for confirmation before deleting g
func (p *Page) OpenDelete(g models.EquipmentGroup) {
	p.DeleteOpen = true
	p.ToDelete = &g
}

// CancelDelete closes the confirmation without deleting
func (p *Page) CancelDelete() {
	p.DeleteOpen = false
	p.ToDelete = nil
}

// ConfirmDelete deletes the group awaiting confirmation. The confirmation
// stays open when the delete fails.
func (p *Page) ConfirmDelete(ctx context.Context, m Mutator) (Notification, error) {
	if !p.DeleteOpen || p.ToDelete == nil {
		return Notification{}, nil
	}

	if _, err := m.Delete(ctx, p.ToDelete.ID); err != nil {
		log.Error().Err(err).Int64("id", p.ToDelete.ID).Msg("Equipment group delete failed")
		return Error(MsgDeleteFailed), err
	}

	p.CancelDelete()
	return Success(MsgDeleted), nil
}
