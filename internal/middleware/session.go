package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/otcheredev/equipment-console/internal/session"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/rs/zerolog/log"
)

// SessionLoader returns the live session stored under a session id
type SessionLoader interface {
	Current(ctx context.Context, sid string) (*models.Session, error)
}

// TenantLoader returns the tenant resolved for a session id at login
type TenantLoader interface {
	Get(ctx context.Context, sid string) (string, bool, error)
}

// Auth loads the caller's session and tenant from the session cookie into the
// request context
type Auth struct {
	sessions   SessionLoader
	tenants    TenantLoader
	cookieName string
}

// NewAuth creates the session middleware
func NewAuth(sessions SessionLoader, tenants TenantLoader, cookieName string) *Auth {
	return &Auth{sessions: sessions, tenants: tenants, cookieName: cookieName}
}

func (a *Auth) load(r *http.Request) (context.Context, bool) {
	c, err := r.Cookie(a.cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}

	sess, err := a.sessions.Current(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Error().Err(err).Msg("Failed to load session")
		}
		return nil, false
	}

	tenantID, ok, err := a.tenants.Get(r.Context(), c.Value)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load tenant")
		return nil, false
	}
	if !ok {
		log.Warn().Str("user_id", sess.UserID).Msg("Session has no tenant")
		return nil, false
	}

	ctx := session.WithSession(r.Context(), c.Value, sess)
	ctx = tenant.WithTenantID(ctx, tenantID)
	return ctx, true
}

// RequirePage sends callers without a session to the login page
func (a *Auth) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := a.load(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAPI rejects callers without a session with 401
func (a *Auth) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := a.load(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
