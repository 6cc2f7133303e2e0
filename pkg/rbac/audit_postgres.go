package rbac

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var auditMigrations embed.FS

// PostgresAuditStore persists audit entries durably. It is the paging
// collaborator the in-memory store's retention bound stands in for.
type PostgresAuditStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// PostgresAuditOption configures the postgres audit store.
type PostgresAuditOption func(*PostgresAuditStore)

// WithPostgresLogger sets the logger for migration output and lifecycle
// failures.
func WithPostgresLogger(log *slog.Logger) PostgresAuditOption {
	return func(s *PostgresAuditStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewPostgresAuditStore wraps an existing pgx pool. The caller owns the
// pool's lifecycle.
func NewPostgresAuditStore(pool *pgxpool.Pool, opts ...PostgresAuditOption) *PostgresAuditStore {
	s := &PostgresAuditStore{
		pool: pool,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the embedded audit schema migrations through goose.
// The pgx pool is bridged to database/sql, which is the interface goose
// expects; the wrapper shares the pool's underlying connections.
func (s *PostgresAuditStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer func() {
		if err := db.Close(); err != nil {
			s.log.ErrorContext(ctx, "closing migration db handle", slog.Any("error", err))
		}
	}()

	goose.SetBaseFS(auditMigrations)
	goose.SetLogger(gooseSlogAdapter{log: s.log})
	goose.SetTableName("rbac_goose_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("rbac: audit migration: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("rbac: audit migration: %w", err)
	}
	return nil
}

// gooseSlogAdapter routes goose's Printf-style output through slog.
type gooseSlogAdapter struct {
	log *slog.Logger
}

func (a gooseSlogAdapter) Fatalf(format string, v ...any) {
	a.log.Error(fmt.Sprintf(format, v...))
}

func (a gooseSlogAdapter) Printf(format string, v ...any) {
	a.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Append inserts one audit entry.
func (s *PostgresAuditStore) Append(ctx context.Context, entry AuditEntry) error {
	accessCtx, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("rbac: marshal audit context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rbac_audit_log
			(id, organization_id, user_id, resource, action, resource_id, allowed, reason, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.OrganizationID, entry.UserID, entry.Resource, entry.Action,
		entry.ResourceID, entry.Allowed, entry.Reason, accessCtx, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("rbac: audit insert: %w", err)
	}
	return nil
}

// Query returns the organization's entries matching the criteria, newest first.
func (s *PostgresAuditStore) Query(ctx context.Context, orgID string, criteria AuditCriteria) ([]AuditEntry, error) {
	var (
		where = []string{"organization_id = $1"}
		args  = []any{orgID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria.UserID != "" {
		where = append(where, "user_id = "+arg(criteria.UserID))
	}
	if criteria.Resource != "" {
		where = append(where, "resource = "+arg(criteria.Resource))
	}
	if criteria.Action != "" {
		where = append(where, "action = "+arg(criteria.Action))
	}
	if criteria.Allowed != nil {
		where = append(where, "allowed = "+arg(*criteria.Allowed))
	}
	if !criteria.From.IsZero() {
		where = append(where, "created_at >= "+arg(criteria.From))
	}
	if !criteria.To.IsZero() {
		where = append(where, "created_at < "+arg(criteria.To))
	}

	query := `
		SELECT id, organization_id, user_id, resource, action, resource_id, allowed, reason, context, created_at
		FROM rbac_audit_log
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC`
	if criteria.Limit > 0 {
		query += " LIMIT " + arg(criteria.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rbac: audit query: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			entry     AuditEntry
			accessCtx []byte
		)
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.UserID, &entry.Resource,
			&entry.Action, &entry.ResourceID, &entry.Allowed, &entry.Reason, &accessCtx, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("rbac: audit scan: %w", err)
		}
		if err := json.Unmarshal(accessCtx, &entry.Context); err != nil {
			return nil, fmt.Errorf("rbac: unmarshal audit context: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
