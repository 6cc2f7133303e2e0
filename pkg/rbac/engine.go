package rbac

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/authzkit/authzkit/pkg/broadcast"
)

// Config carries engine tunables. Fields map to environment variables for use
// with the config package.
type Config struct {
	// CacheTTL is the default lifetime of cached decisions.
	CacheTTL time.Duration `env:"RBAC_CACHE_TTL" envDefault:"5m"`

	// CacheSweepInterval is how often the in-memory decision cache reclaims
	// expired entries.
	CacheSweepInterval time.Duration `env:"RBAC_CACHE_SWEEP_INTERVAL" envDefault:"1m"`

	// AuditRetention bounds the in-memory audit log; oldest entries beyond
	// the bound are dropped.
	AuditRetention int `env:"RBAC_AUDIT_RETENTION" envDefault:"10000"`

	// EventBufferSize is the per-subscriber buffer of the event channel.
	EventBufferSize int `env:"RBAC_EVENT_BUFFER_SIZE" envDefault:"256"`
}

// DefaultConfig returns the engine defaults used when no config is supplied.
func DefaultConfig() Config {
	return Config{
		CacheTTL:           5 * time.Minute,
		CacheSweepInterval: time.Minute,
		AuditRetention:     10000,
		EventBufferSize:    256,
	}
}

// Engine is the RBAC decision engine. It owns the permission, role,
// assignment, and policy stores, fronted by a decision cache and recorded to
// an audit store. All methods are safe for concurrent use.
type Engine struct {
	cfg Config

	permissions *permissionStore
	roles       *roleStore
	assignments *assignmentStore
	policies    *policyStore

	cache  DecisionCache
	audit  AuditStore
	events broadcast.Broadcaster[Event]
	log    *slog.Logger

	now   func() time.Time
	newID func() string
}

// Option configures engine construction.
type Option func(*Engine)

// WithConfig replaces the default engine tunables.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides the entity ID generator. Defaults to UUIDv4.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithDecisionCache injects a decision cache implementation, e.g. the
// redis-backed one. Defaults to the in-memory TTL cache.
func WithDecisionCache(cache DecisionCache) Option {
	return func(e *Engine) {
		if cache != nil {
			e.cache = cache
		}
	}
}

// WithAuditStore injects an audit store implementation, e.g. the
// postgres-backed one. Defaults to the bounded in-memory store.
func WithAuditStore(store AuditStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.audit = store
		}
	}
}

// WithBroadcaster injects the event channel mutation and decision events are
// published on. Defaults to an in-memory broadcaster.
func WithBroadcaster(b broadcast.Broadcaster[Event]) Option {
	return func(e *Engine) {
		if b != nil {
			e.events = b
		}
	}
}

// New constructs an engine. Callers own the returned instance and should
// Close it when done to release the cache sweeper and event channel.
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:         DefaultConfig(),
		permissions: newPermissionStore(),
		roles:       newRoleStore(),
		assignments: newAssignmentStore(),
		policies:    newPolicyStore(),
		now:         time.Now,
		newID:       uuid.NewString,
		log:         slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = NewMemoryDecisionCache(e.cfg.CacheSweepInterval, e.now)
	}
	if e.audit == nil {
		e.audit = NewMemoryAuditStore(e.cfg.AuditRetention)
	}
	if e.events == nil {
		e.events = broadcast.NewMemory[Event](e.cfg.EventBufferSize)
	}

	return e
}

// Subscribe registers a consumer of mutation and decision events. The
// subscription ends when ctx is cancelled.
func (e *Engine) Subscribe(ctx context.Context) broadcast.Subscriber[Event] {
	return e.events.Subscribe(ctx)
}

// Close releases the decision cache and the event channel.
func (e *Engine) Close() error {
	err := e.cache.Close()
	if cerr := e.events.Close(); err == nil {
		err = cerr
	}
	return err
}

// invalidateAll clears the whole decision cache. Used on permission, role,
// and policy mutations: topology changes are rare and safety-critical, so
// correctness wins over precision.
func (e *Engine) invalidateAll(ctx context.Context) {
	e.cache.Clear(ctx)
}

// invalidateUser clears only the user's cached decisions. Assignment changes
// are frequent; scoping the invalidation avoids churn for other users.
func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	e.cache.DeleteByPrefix(ctx, cacheKeyPrefix(userID))
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	ev.At = e.now()
	if err := e.events.Broadcast(ctx, ev); err != nil {
		e.log.WarnContext(ctx, "event broadcast failed",
			slog.String("event", string(ev.Type)), slog.Any("error", err))
	}
}
