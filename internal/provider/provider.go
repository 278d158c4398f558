// Package provider defines the uniform contract every extraction backend
// implements, and the small TTL cache adapters use to avoid re-running
// expensive configuration checks on every document.
package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nxreporting/stockex/internal/model"
)

// Provider wraps one external extraction backend. Extract returns a
// classified error for expected failure modes; it never panics for them.
// The cascade depends only on this interface, never on concrete adapters.
type Provider interface {
	Name() string

	// IsConfigured is a cheap, advisory check. A stale true costs one
	// wasted attempt, never a correctness violation.
	IsConfigured(ctx context.Context) bool

	Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error)
}

// ConfiguredCache memoizes an IsConfigured answer for a short TTL. Advisory
// only, but guarded by a mutex since batch callers may share adapters
// across goroutines.
type ConfiguredCache struct {
	ttl   time.Duration
	check func(ctx context.Context) bool

	mu        sync.Mutex
	value     bool
	checkedAt time.Time
}

// NewConfiguredCache wraps check with a TTL (default 30s when ttl <= 0).
func NewConfiguredCache(ttl time.Duration, check func(ctx context.Context) bool) *ConfiguredCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ConfiguredCache{ttl: ttl, check: check}
}

// Get returns the cached answer, refreshing it when the TTL has lapsed.
func (c *ConfiguredCache) Get(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checkedAt.IsZero() && time.Since(c.checkedAt) < c.ttl {
		return c.value
	}
	c.value = c.check(ctx)
	c.checkedAt = time.Now()
	return c.value
}

// UsableKey reports whether an API key looks real: non-empty and not one of
// the placeholder values people leave in env files. Placeholders must make
// IsConfigured return false, not blow up at call time.
func UsableKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	for _, p := range []string{"your_", "your-", "changeme", "replace_me", "xxx"} {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}
