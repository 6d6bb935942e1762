package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/otcheredev/equipment-console/internal/authprovider"
	"github.com/otcheredev/equipment-console/internal/metrics"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/otcheredev/equipment-console/internal/session"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/rs/zerolog/log"
)

// TenantResolver picks the tenant of a signed-in user
type TenantResolver interface {
	Resolve(ctx context.Context, userID string) (string, bool)
}

// AuthService drives console login and logout
type AuthService struct {
	sessions *session.Store
	tenants  *tenant.Cache
	resolver TenantResolver
	audit    AuditRecorder
}

// NewAuthService creates a new auth service. audit may be nil.
func NewAuthService(sessions *session.Store, tenants *tenant.Cache, resolver TenantResolver, audit AuditRecorder) *AuthService {
	return &AuthService{
		sessions: sessions,
		tenants:  tenants,
		resolver: resolver,
		audit:    audit,
	}
}

// Login signs the user in and resolves their tenant. Nothing is stored when
// the user has no tenant membership. On success the new session id is returned.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	start := time.Now()

	sess, err := s.sessions.SignIn(ctx, email, password)
	if err != nil {
		outcome := "error"
		if errors.Is(err, authprovider.ErrInvalidCredentials) {
			outcome = "invalid_credentials"
		}
		metrics.Logins.WithLabelValues(outcome).Inc()
		s.record(ctx, models.AuditActionLogin, "", "", start, err)
		return "", err
	}

	tenantID, ok := s.resolver.Resolve(ctx, sess.UserID)
	if !ok {
		metrics.Logins.WithLabelValues("no_tenant").Inc()
		s.record(ctx, models.AuditActionLogin, sess.UserID, "", start, tenant.ErrNoTenant)
		return "", tenant.ErrNoTenant
	}

	sid, err := s.sessions.Save(ctx, sess)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.tenants.Set(ctx, sid, tenantID); err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		if derr := s.sessions.SignOut(ctx, sid); derr != nil {
			log.Warn().Err(derr).Msg("Failed to roll back session")
		}
		return "", err
	}

	metrics.Logins.WithLabelValues("success").Inc()
	s.record(ctx, models.AuditActionLogin, sess.UserID, tenantID, start, nil)
	log.Info().Str("user_id", sess.UserID).Str("tenant_id", tenantID).Msg("User logged in")
	return sid, nil
}

// Logout ends the console session sid
func (s *AuthService) Logout(ctx context.Context, sid string) error {
	start := time.Now()

	userID := ""
	if sess, ok := session.FromContext(ctx); ok {
		userID = sess.UserID
	}
	tenantID, _, err := s.tenants.Get(ctx, sid)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read tenant on logout")
	}

	if err := s.tenants.Clear(ctx, sid); err != nil {
		log.Warn().Err(err).Msg("Failed to clear tenant")
	}
	err = s.sessions.SignOut(ctx, sid)
	s.record(ctx, models.AuditActionLogout, userID, tenantID, start, err)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func (s *AuthService) record(ctx context.Context, action, userID, tenantID string, start time.Time, opErr error) {
	if s.audit == nil {
		return
	}
	entry := auditEntry(ctx, action, start, opErr)
	entry.ResourceType = "session"
	if userID != "" {
		entry.UserID = userID
	}
	if tenantID != "" {
		entry.TenantID = tenantID
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to write audit log")
	}
}

// auditEntry fills the caller and outcome of an audit entry from ctx
func auditEntry(ctx context.Context, action string, start time.Time, opErr error) *models.AuditLog {
	entry := &models.AuditLog{
		Action:   action,
		Status:   models.AuditStatusSuccess,
		Duration: time.Since(start).Milliseconds(),
	}
	if tenantID, ok := tenant.FromContext(ctx); ok {
		entry.TenantID = tenantID
	}
	if sess, ok := session.FromContext(ctx); ok {
		entry.UserID = sess.UserID
	}
	if opErr != nil {
		entry.Status = models.AuditStatusFailure
		entry.ErrorMessage = opErr.Error()
	}
	return entry
}
