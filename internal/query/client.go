// Package query caches read results by key, shares concurrent identical
// reads and retries transient read failures. Writes invalidate keys.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/otcheredev/equipment-console/internal/cache"
	"github.com/otcheredev/equipment-console/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Client is a read-through query cache
type Client struct {
	cache      cache.Cache
	group      singleflight.Group
	staleTime  time.Duration
	retry      int
	retryDelay time.Duration
	retryable  func(error) bool
	timeout    time.Duration

	// generations guard writes from this process only; another replica sharing
	// the cache can still write a stale value until staleTime expires it
	mu          sync.Mutex
	generations map[string]uint64
}

// Option configures a Client
type Option func(*Client)

// WithRetry sets how many times a failed read is retried and the delay between tries
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Client) {
		c.retry = n
		c.retryDelay = delay
	}
}

// WithRetryable decides which read errors are worth retrying
func WithRetryable(fn func(error) bool) Option {
	return func(c *Client) { c.retryable = fn }
}

// WithTimeout bounds a shared read, which outlives the caller that started it
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a query client. Results stay fresh for staleTime.
func New(c cache.Cache, staleTime time.Duration, opts ...Option) *Client {
	qc := &Client{
		cache:       c,
		staleTime:   staleTime,
		retry:       1,
		retryDelay:  time.Second,
		retryable:   defaultRetryable,
		timeout:     30 * time.Second,
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(qc)
	}
	return qc
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// Fetch returns the cached value for key, or runs fn once for all concurrent
// callers and caches its result. A result fetched across an invalidation is
// returned to its callers but not cached.
func Fetch[T any](ctx context.Context, c *Client, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if data, err := c.cache.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.QueryCache.WithLabelValues("hit").Inc()
			return v, nil
		}
		log.Warn().Str("key", key).Msg("Dropping undecodable query cache entry")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Query cache read failed")
	}

	// The read is shared by every caller waiting on key, so it keeps ctx values
	// (session, tenant) but not the first caller's cancellation.
	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		gen := c.generation(key)
		v, err := retry(sctx, c, key, fn)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query result: %w", err)
		}
		if c.generation(key) == gen {
			if err := c.cache.Set(sctx, key, data, c.staleTime); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Query cache write failed")
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.QueryCache.WithLabelValues("shared").Inc()
		} else {
			metrics.QueryCache.WithLabelValues("miss").Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func retry[T any](ctx context.Context, c *Client, key string, fn func(context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		v, err = fn(ctx)
		if err == nil || attempt >= c.retry || !c.retryable(err) {
			return v, err
		}

		metrics.QueryRetries.Inc()
		log.Warn().Err(err).Str("key", key).Int("attempt", attempt+1).Msg("Query failed, retrying")

		if c.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return v, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// Invalidate drops the cached value for key so the next Fetch reads through.
// Fetches already in flight finish but do not repopulate the cache.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	c.generations[key]++
	c.mu.Unlock()

	c.group.Forget(key)
	if err := c.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	return nil
}
