package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/otcheredev/equipment-console/internal/authprovider"
	"github.com/otcheredev/equipment-console/internal/session"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/otcheredev/equipment-console/internal/view"
	"github.com/rs/zerolog/log"
)

// Authenticator logs users in and out of the console
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, sid string) error
}

// CookieConfig describes the session cookie
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// LoginHandler serves the login form and logout
type LoginHandler struct {
	auth   Authenticator
	cookie CookieConfig
}

func NewLoginHandler(auth Authenticator, cookie CookieConfig) *LoginHandler {
	return &LoginHandler{auth: auth, cookie: cookie}
}

type loginPage struct {
	Email        string
	Notification view.Notification
}

// Form renders the login form
func (h *LoginHandler) Form(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, http.StatusOK, "login", &loginPage{Notification: view.PopFlash(w, r)})
}

// Login signs the user in and redirects to the master page
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	sid, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Login failed")
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, tenant.ErrNoTenant):
			status = http.StatusForbidden
		case !errors.Is(err, authprovider.ErrInvalidCredentials):
			status = http.StatusBadGateway
		}
		renderHTML(w, status, "login", &loginPage{Email: email, Notification: view.LoginFailed(err)})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	view.SetFlash(w, view.LoginSucceeded())
	http.Redirect(w, r, masterPath, http.StatusSeeOther)
}

// Logout ends the session and returns to the login form
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := session.IDFromContext(r.Context()); ok {
		if err := h.auth.Logout(r.Context(), sid); err != nil {
			log.Error().Err(err).Msg("Logout failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
