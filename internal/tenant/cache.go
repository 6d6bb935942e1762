package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/otcheredev/equipment-console/internal/cache"
)

// Cache persists the resolved tenant of each console session
type Cache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCache creates a tenant cache over a cache backend
func NewCache(c cache.Cache, ttl time.Duration) *Cache {
	return &Cache{cache: c, ttl: ttl}
}

func key(sid string) string {
	return cache.Key("tenant", sid)
}

// Set records the tenant of a session, replacing any previous one
func (c *Cache) Set(ctx context.Context, sid, tenantID string) error {
	if sid == "" || tenantID == "" {
		return errors.New("session id and tenant id are required")
	}
	if err := c.cache.Set(ctx, key(sid), []byte(tenantID), c.ttl); err != nil {
		return fmt.Errorf("failed to cache tenant: %w", err)
	}
	return nil
}

// Get returns the tenant of a session
func (c *Cache) Get(ctx context.Context, sid string) (string, bool, error) {
	if sid == "" {
		return "", false, nil
	}
	data, err := c.cache.Get(ctx, key(sid))
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read tenant: %w", err)
	}
	return string(data), len(data) > 0, nil
}

// Touch restarts the TTL of the tenant of a session. A session without a
// tenant is left as is.
func (c *Cache) Touch(ctx context.Context, sid string) error {
	tenantID, ok, err := c.Get(ctx, sid)
	if err != nil || !ok {
		return err
	}
	return c.Set(ctx, sid, tenantID)
}

// Clear forgets the tenant of a session
func (c *Cache) Clear(ctx context.Context, sid string) error {
	if err := c.cache.Delete(ctx, key(sid)); err != nil {
		return fmt.Errorf("failed to clear tenant: %w", err)
	}
	return nil
}
