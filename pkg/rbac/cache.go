package rbac

import (
	"context"
	"strings"
	"time"

	"github.com/authzkit/authzkit/pkg/cache"
)

const cacheKeySeparator = "|"

// cacheKeyEscaper makes key parts unambiguous: a separator or backslash
// inside a caller-supplied ID must not alias two distinct tuples into one
// key, or let one principal's prefix match another's entries.
var cacheKeyEscaper = strings.NewReplacer(`\`, `\\`, cacheKeySeparator, `\`+cacheKeySeparator)

// cacheKey builds the memoization key for one access check. The principal
// comes first so per-user invalidation can match on prefix.
func cacheKey(userID, orgID, resource, action, resourceID string) string {
	parts := []string{userID, orgID, resource, action, resourceID}
	for i, p := range parts {
		parts[i] = cacheKeyEscaper.Replace(p)
	}
	return strings.Join(parts, cacheKeySeparator)
}

// cacheKeyPrefix is the invalidation prefix covering every key of one
// principal, and no one else's.
func cacheKeyPrefix(userID string) string {
	return cacheKeyEscaper.Replace(userID) + cacheKeySeparator
}

// DecisionCache memoizes access decisions. Implementations must be safe for
// concurrent use. The engine clears the whole cache on permission, role, and
// policy mutations, and deletes by principal prefix on assignment changes.
type DecisionCache interface {
	Get(ctx context.Context, key string) (AccessDecision, bool)
	Set(ctx context.Context, key string, decision AccessDecision, ttl time.Duration)
	DeleteByPrefix(ctx context.Context, prefix string)
	Clear(ctx context.Context)
	Close() error
}

// memoryDecisionCache is the default in-process cache, built on the generic
// TTL store with a background sweeper.
type memoryDecisionCache struct {
	store *cache.TTLStore[string, AccessDecision]
}

// NewMemoryDecisionCache creates the in-memory decision cache. A positive
// sweepInterval starts a background goroutine reclaiming expired entries;
// reads check expiry regardless, so stale entries between sweeps are
// harmless. now overrides the time source and may be nil.
func NewMemoryDecisionCache(sweepInterval time.Duration, now func() time.Time) DecisionCache {
	opts := []cache.TTLOption[string, AccessDecision]{}
	if sweepInterval > 0 {
		opts = append(opts, cache.WithSweepInterval[string, AccessDecision](sweepInterval))
	}
	if now != nil {
		opts = append(opts, cache.WithClock[string, AccessDecision](now))
	}
	return &memoryDecisionCache{store: cache.NewTTLStore(opts...)}
}

func (c *memoryDecisionCache) Get(ctx context.Context, key string) (AccessDecision, bool) {
	return c.store.Get(key)
}

func (c *memoryDecisionCache) Set(ctx context.Context, key string, decision AccessDecision, ttl time.Duration) {
	c.store.Set(key, decision, ttl)
}

func (c *memoryDecisionCache) DeleteByPrefix(ctx context.Context, prefix string) {
	c.store.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (c *memoryDecisionCache) Clear(ctx context.Context) {
	c.store.Clear()
}

func (c *memoryDecisionCache) Close() error {
	c.store.Stop()
	return nil
}
