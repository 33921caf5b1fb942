// Package audit records catalog edits and inventory syncs in the audit_logs
// table and lists them per tenant.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by this service.
const (
	ActionCreate     = "create"
	ActionDelete     = "delete"
	ActionSetDefault = "set_default"
	ActionSync       = "sync"
	ActionPurge      = "purge"
	ActionPrune      = "prune"
)

// Entity types recorded by this service.
const (
	EntityTemplate     = "template"
	EntityModelMapping = "model_mapping"
	EntityTypeMapping  = "type_mapping"
	EntityConnection   = "connection"
	EntityCache        = "cache"
	EntityAuditLog     = "audit_log"
)

// Sources of audited changes.
const (
	SourceAPI = "api"
	SourceCLI = "cli"
	SourceBus = "mqtt"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout is fixed-width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// AuditLog is one audit trail entry. TenantID is empty for service-wide
// operations such as a cache purge from the CLI.
type AuditLog struct { //nolint:revive // audit.AuditLog reads better than audit.Log at call sites
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	TenantID   string
	Action     string
	EntityType string
	EntityID   string
	Since      time.Time // entries created at or after Since
	Limit      int       // DefaultLimit when <= 0, capped at MaxLimit
	Offset     int
}

// ListResult is one page of entries plus the total matching the filter.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository stores and queries audit entries.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository implements Repository on the audit_logs table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts log, assigning an ID and timestamp when they are unset.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	log.CreatedAt = log.CreatedAt.UTC()

	var details sql.NullString
	if len(log.Details) > 0 {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, tenant_id, action, entity_type, entity_id, user_id, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, nullString(log.TenantID), log.Action, log.EntityType,
		nullString(log.EntityID), nullString(log.UserID), log.Source, details,
		log.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// List returns the page of entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = clamp(filter.Limit, DefaultLimit, MaxLimit)
	filter.Offset = max(filter.Offset, 0)

	where, args := filter.where()

	var total int
	//nolint:gosec // where holds only placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	//nolint:gosec // where holds only placeholders
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, action, entity_type, entity_id, user_id, source, details, created_at
		 FROM audit_logs`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{Logs: logs, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning audit logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// where renders the filter as a SQL WHERE clause of placeholders.
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}

	if f.TenantID != "" {
		add("tenant_id = ?", f.TenantID)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = ?", f.EntityID)
	}
	if !f.Since.IsZero() {
		add("created_at >= ?", f.Since.UTC().Format(timeLayout))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var (
		log                        AuditLog
		tenantID, entityID, userID sql.NullString
		details                    sql.NullString
		createdAt                  string
	)
	if err := rows.Scan(&log.ID, &tenantID, &log.Action, &log.EntityType,
		&entityID, &userID, &log.Source, &details, &createdAt); err != nil {
		return log, fmt.Errorf("scanning audit log: %w", err)
	}

	log.TenantID = tenantID.String
	log.EntityID = entityID.String
	log.UserID = userID.String

	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &log.Details); err != nil {
			return log, fmt.Errorf("decoding details of audit log %s: %w", log.ID, err)
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return log, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t
	return log, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func clamp(v, fallback, upper int) int {
	if v <= 0 {
		return fallback
	}
	return min(v, upper)
}
