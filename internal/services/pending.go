package services

import (
	"context"
	"sync"

	"github.com/otcheredev/equipment-console/internal/session"
)

// pending counts in-flight mutations per console session
type pending struct {
	mu     sync.Mutex
	counts map[string]int
}

func newPending() *pending {
	return &pending{counts: make(map[string]int)}
}

func pendingKey(ctx context.Context) string {
	sid, _ := session.IDFromContext(ctx)
	return sid
}

// begin marks a mutation of the caller as in flight; the returned func ends it
func (p *pending) begin(ctx context.Context) func() {
	key := pendingKey(ctx)
	p.mu.Lock()
	p.counts[key]++
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.counts[key]--; p.counts[key] <= 0 {
			delete(p.counts, key)
		}
	}
}

func (p *pending) active(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[pendingKey(ctx)] > 0
}
