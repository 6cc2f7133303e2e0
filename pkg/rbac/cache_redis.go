package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "rbac:decision:"

// RedisDecisionCache stores decisions in Redis, surviving engine restarts.
// It assumes a single engine instance performs invalidation: cross-instance
// cache coherency is not provided, so either run one engine per keyspace or
// disable caching when scaling out.
type RedisDecisionCache struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// RedisCacheOption configures the redis decision cache.
type RedisCacheOption func(*RedisDecisionCache)

// WithRedisKeyPrefix overrides the key namespace.
func WithRedisKeyPrefix(prefix string) RedisCacheOption {
	return func(c *RedisDecisionCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithRedisLogger sets the logger for cache-level failures.
func WithRedisLogger(log *slog.Logger) RedisCacheOption {
	return func(c *RedisDecisionCache) {
		if log != nil {
			c.log = log
		}
	}
}

// NewRedisDecisionCache wraps an existing redis client. The caller owns the
// client's lifecycle; Close here is a no-op.
func NewRedisDecisionCache(client redis.UniversalClient, opts ...RedisCacheOption) *RedisDecisionCache {
	c := &RedisDecisionCache{
		client: client,
		prefix: defaultRedisKeyPrefix,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached decision for key, if any. Redis errors degrade to a
// cache miss so the evaluator re-evaluates instead of failing.
func (c *RedisDecisionCache) Get(ctx context.Context, key string) (AccessDecision, bool) {
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "redis cache get failed", slog.Any("error", err))
		}
		return AccessDecision{}, false
	}

	var decision AccessDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		c.log.WarnContext(ctx, "redis cache entry corrupt", slog.Any("error", err))
		return AccessDecision{}, false
	}
	return decision, true
}

// Set stores the decision under key with the given ttl.
func (c *RedisDecisionCache) Set(ctx context.Context, key string, decision AccessDecision, ttl time.Duration) {
	payload, err := json.Marshal(decision)
	if err != nil {
		c.log.WarnContext(ctx, "redis cache marshal failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, max(ttl, 0)).Err(); err != nil {
		c.log.WarnContext(ctx, "redis cache set failed", slog.Any("error", err))
	}
}

// DeleteByPrefix removes every decision whose key starts with prefix.
// The prefix is matched literally: glob metacharacters in principal IDs
// must not widen or break the scan pattern.
func (c *RedisDecisionCache) DeleteByPrefix(ctx context.Context, prefix string) {
	c.deleteMatching(ctx, escapeGlob(c.prefix+prefix)+"*")
}

// Clear removes every decision in the cache namespace.
func (c *RedisDecisionCache) Clear(ctx context.Context) {
	c.deleteMatching(ctx, escapeGlob(c.prefix)+"*")
}

// escapeGlob backslash-escapes redis glob metacharacters so a key fragment
// matches itself and nothing else in a SCAN MATCH pattern.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *RedisDecisionCache) deleteMatching(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 512).Result()
		if err != nil {
			c.log.WarnContext(ctx, "redis cache scan failed", slog.Any("error", err))
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.WarnContext(ctx, "redis cache delete failed", slog.Any("error", err))
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// Close satisfies DecisionCache; the redis client belongs to the caller.
func (c *RedisDecisionCache) Close() error { return nil }
