package rbac

import (
	"context"
	"sync"
	"time"
)

// AuditCriteria filters audit log retrieval. Zero fields match everything.
type AuditCriteria struct {
	UserID   string
	Resource string
	Action   string

	// Allowed filters by decision outcome when non-nil.
	Allowed *bool

	// From and To bound the entry timestamp (inclusive from, exclusive to).
	From time.Time
	To   time.Time

	// Limit caps the number of returned entries; zero means no cap.
	Limit int
}

func (c AuditCriteria) matches(entry AuditEntry) bool {
	if c.UserID != "" && entry.UserID != c.UserID {
		return false
	}
	if c.Resource != "" && entry.Resource != c.Resource {
		return false
	}
	if c.Action != "" && entry.Action != c.Action {
		return false
	}
	if c.Allowed != nil && entry.Allowed != *c.Allowed {
		return false
	}
	if !c.From.IsZero() && entry.CreatedAt.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && !entry.CreatedAt.Before(c.To) {
		return false
	}
	return true
}

// AuditStore persists evaluated access checks. Implementations must be safe
// for concurrent use. Query returns entries newest first.
type AuditStore interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, orgID string, criteria AuditCriteria) ([]AuditEntry, error)
}

// memoryAuditStore is a bounded append-only ring: beyond the retention count
// the oldest entries are dropped. A durable implementation pages to external
// storage instead.
type memoryAuditStore struct {
	mu        sync.RWMutex
	entries   []AuditEntry
	retention int
}

// NewMemoryAuditStore creates the bounded in-memory audit store. A
// non-positive retention falls back to the engine default.
func NewMemoryAuditStore(retention int) AuditStore {
	if retention <= 0 {
		retention = DefaultConfig().AuditRetention
	}
	return &memoryAuditStore{retention: retention}
}

func (s *memoryAuditStore) Append(ctx context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if overflow := len(s.entries) - s.retention; overflow > 0 {
		s.entries = append(s.entries[:0:0], s.entries[overflow:]...)
	}
	return nil
}

func (s *memoryAuditStore) Query(ctx context.Context, orgID string, criteria AuditCriteria) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Entries are appended in time order; walking backwards yields newest
	// first and lets the limit short-circuit.
	var out []AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.OrganizationID != orgID || !criteria.matches(entry) {
			continue
		}
		out = append(out, entry)
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

// AuditLog returns the organization's audit entries matching the criteria,
// newest first.
func (e *Engine) AuditLog(ctx context.Context, orgID string, criteria AuditCriteria) ([]AuditEntry, error) {
	return e.audit.Query(ctx, orgID, criteria)
}

// Statistics aggregates engine activity for the organization: principals
// holding roles, owned roles, the global permission count, and the trailing
// 24 hours of access checks with their denial rate.
func (e *Engine) Statistics(ctx context.Context, orgID string) (Statistics, error) {
	now := e.now()

	stats := Statistics{
		ActivePrincipals: e.assignments.principalsWithRole(orgID, now),
		Roles:            e.roles.countOwned(orgID),
		Permissions:      e.permissions.count(),
	}

	recent, err := e.audit.Query(ctx, orgID, AuditCriteria{From: now.Add(-24 * time.Hour)})
	if err != nil {
		return Statistics{}, err
	}
	stats.ChecksLast24h = len(recent)
	if len(recent) > 0 {
		denied := 0
		for _, entry := range recent {
			if !entry.Allowed {
				denied++
			}
		}
		stats.DenialRate = float64(denied) / float64(len(recent))
	}

	return stats, nil
}
