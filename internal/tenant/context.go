package tenant

import "context"

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// WithTenantID returns a context carrying the tenant id
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// FromContext extracts the tenant id from context
func FromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantIDKey).(string)
	return tenantID, ok && tenantID != ""
}

// ContextSource serves the request's tenant to the request gateway
type ContextSource struct{}

// TenantID returns the tenant carried by ctx
func (ContextSource) TenantID(ctx context.Context) (string, bool) {
	return FromContext(ctx)
}
