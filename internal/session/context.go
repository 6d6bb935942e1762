package session

import (
	"context"

	"github.com/otcheredev/equipment-console/internal/models"
)

type contextKey string

const sessionKey contextKey = "session"
const idKey contextKey = "session_id"

// WithSession returns a context carrying the current session and its id
func WithSession(ctx context.Context, sid string, sess *models.Session) context.Context {
	ctx = context.WithValue(ctx, idKey, sid)
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext extracts the session from context
func FromContext(ctx context.Context) (*models.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*models.Session)
	return sess, ok && sess != nil
}

// IDFromContext extracts the session id from context
func IDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(idKey).(string)
	return sid, ok && sid != ""
}

// ContextProvider serves the request's session to the request gateway
type ContextProvider struct{}

// Session returns the session carried by ctx, or nil when there is none
func (ContextProvider) Session(ctx context.Context) (*models.Session, error) {
	sess, _ := FromContext(ctx)
	return sess, nil
}
