package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reader is the query side of the catalog used by template matching.
//
// tenantID selects visibility: rows in Global() scope plus rows owned by
// tenantID. An empty tenantID sees only global rows.
type Reader interface {
	// ModelMappings returns mappings for an exact (case-sensitive) device
	// model whose row and template are both visible to the tenant, ordered by
	// ascending priority then ID.
	ModelMappings(ctx context.Context, tenantID, model string) ([]ModelMapping, error)

	// TypeMappings returns visible mappings for a device category, ordered by
	// ascending priority then ID.
	TypeMappings(ctx context.Context, tenantID, category string) ([]TypeMapping, error)

	// ProductTypeTemplates returns templates in exactly the given scope whose
	// product type filter equals productType under Unicode case folding.
	// Ordered default first, then by ID.
	ProductTypeTemplates(ctx context.Context, scope Scope, productType string) ([]Template, error)

	// DefaultTemplates returns the templates flagged as default in exactly
	// the given scope, ordered by ID. More than one row means the invariant
	// was broken outside this package.
	DefaultTemplates(ctx context.Context, scope Scope) ([]Template, error)

	// VisibleTemplates returns every template visible to the tenant, ordered by ID.
	VisibleTemplates(ctx context.Context, tenantID string) ([]Template, error)
}

// Repository is the full catalog store: queries plus authoring.
type Repository interface {
	Reader

	// GetTemplate returns a template by ID regardless of scope.
	GetTemplate(ctx context.Context, id int64) (*Template, error)

	// CreateTemplate validates and inserts t, setting its ID and timestamps.
	// If t.IsDefault, any previous default in the same scope is cleared.
	CreateTemplate(ctx context.Context, t *Template) error

	// SetDefault marks a template owned by scope as that scope's default.
	SetDefault(ctx context.Context, owner Scope, id int64) error

	// DeleteTemplate removes a template owned by scope. System templates are refused.
	DeleteTemplate(ctx context.Context, owner Scope, id int64) error

	// ListModelMappings returns every model mapping visible to the tenant.
	ListModelMappings(ctx context.Context, tenantID string) ([]ModelMapping, error)

	// CreateModelMapping validates and inserts a model mapping.
	CreateModelMapping(ctx context.Context, m *ModelMapping) error

	// DeleteModelMapping removes a model mapping owned by scope.
	DeleteModelMapping(ctx context.Context, owner Scope, id int64) error

	// ListTypeMappings returns every type mapping visible to the tenant.
	ListTypeMappings(ctx context.Context, tenantID string) ([]TypeMapping, error)

	// CreateTypeMapping validates and inserts a type mapping.
	CreateTypeMapping(ctx context.Context, m *TypeMapping) error

	// DeleteTypeMapping removes a type mapping owned by scope.
	DeleteTypeMapping(ctx context.Context, owner Scope, id int64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed catalog repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const templateColumns = `t.id, t.tenant_id, t.name, t.is_default, t.is_system,
	t.product_type_filter, t.width_mm, t.height_mm, t.design, t.created_at, t.updated_at`

// visibleTemplate restricts the alias t to templates the tenant can see.
const visibleTemplate = `(t.tenant_id IS NULL OR t.tenant_id = ?)`

// ModelMappings implements Reader.
func (r *SQLiteRepository) ModelMappings(ctx context.Context, tenantID, model string) ([]ModelMapping, error) {
	query := `
		SELECT m.id, m.tenant_id, m.device_model, m.template_id, m.priority, m.created_at, ` + templateColumns + `
		FROM model_mappings m
		JOIN templates t ON t.id = m.template_id
		WHERE m.device_model = ?
			AND (m.tenant_id IS NULL OR m.tenant_id = ?)
			AND ` + visibleTemplate + `
		ORDER BY m.priority, m.id`

	rows, err := r.db.QueryContext(ctx, query, model, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying model mappings: %w", err)
	}
	return collectModelMappings(rows)
}

// TypeMappings implements Reader.
func (r *SQLiteRepository) TypeMappings(ctx context.Context, tenantID, category string) ([]TypeMapping, error) {
	query := `
		SELECT m.id, m.tenant_id, m.category, m.template_id, m.priority, m.created_at, ` + templateColumns + `
		FROM type_mappings m
		JOIN templates t ON t.id = m.template_id
		WHERE m.category = ?
			AND (m.tenant_id IS NULL OR m.tenant_id = ?)
			AND ` + visibleTemplate + `
		ORDER BY m.priority, m.id`

	rows, err := r.db.QueryContext(ctx, query, category, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying type mappings: %w", err)
	}
	return collectTypeMappings(rows)
}

// ProductTypeTemplates implements Reader.
func (r *SQLiteRepository) ProductTypeTemplates(ctx context.Context, scope Scope, productType string) ([]Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM templates t
		WHERE ` + scopeClause(scope) + `
			AND t.product_type_filter != ''
		ORDER BY t.is_default DESC, t.id`

	rows, err := r.db.QueryContext(ctx, query, scopeArgs(scope)...)
	if err != nil {
		return nil, fmt.Errorf("querying product type templates: %w", err)
	}
	templates, err := collectTemplates(rows)
	if err != nil {
		return nil, err
	}

	// SQLite NOCASE folds ASCII only; compare here so non-ASCII product
	// types match the same way the resolver does.
	matched := templates[:0]
	for _, t := range templates {
		if strings.EqualFold(t.ProductTypeFilter, productType) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// DefaultTemplates implements Reader.
func (r *SQLiteRepository) DefaultTemplates(ctx context.Context, scope Scope) ([]Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM templates t
		WHERE ` + scopeClause(scope) + ` AND t.is_default = 1
		ORDER BY t.id`

	rows, err := r.db.QueryContext(ctx, query, scopeArgs(scope)...)
	if err != nil {
		return nil, fmt.Errorf("querying default templates: %w", err)
	}
	return collectTemplates(rows)
}

// VisibleTemplates implements Reader.
func (r *SQLiteRepository) VisibleTemplates(ctx context.Context, tenantID string) ([]Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM templates t
		WHERE ` + visibleTemplate + `
		ORDER BY t.id`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying visible templates: %w", err)
	}
	return collectTemplates(rows)
}

// GetTemplate implements Repository.
func (r *SQLiteRepository) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates t WHERE t.id = ?`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("querying template by id: %w", err)
	}
	return t, nil
}

// ListModelMappings implements Repository.
func (r *SQLiteRepository) ListModelMappings(ctx context.Context, tenantID string) ([]ModelMapping, error) {
	query := `
		SELECT m.id, m.tenant_id, m.device_model, m.template_id, m.priority, m.created_at, ` + templateColumns + `
		FROM model_mappings m
		JOIN templates t ON t.id = m.template_id
		WHERE (m.tenant_id IS NULL OR m.tenant_id = ?)
		ORDER BY m.device_model, m.priority, m.id`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing model mappings: %w", err)
	}
	return collectModelMappings(rows)
}

// ListTypeMappings implements Repository.
func (r *SQLiteRepository) ListTypeMappings(ctx context.Context, tenantID string) ([]TypeMapping, error) {
	query := `
		SELECT m.id, m.tenant_id, m.category, m.template_id, m.priority, m.created_at, ` + templateColumns + `
		FROM type_mappings m
		JOIN templates t ON t.id = m.template_id
		WHERE (m.tenant_id IS NULL OR m.tenant_id = ?)
		ORDER BY m.category, m.priority, m.id`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing type mappings: %w", err)
	}
	return collectTypeMappings(rows)
}

// scopeClause matches templates owned by exactly the given scope.
func scopeClause(scope Scope) string {
	if scope.IsGlobal() {
		return "t.tenant_id IS NULL"
	}
	return "t.tenant_id = ?"
}

func scopeArgs(scope Scope) []any {
	if scope.IsGlobal() {
		return nil
	}
	return []any{scope.TenantID()}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// templateDest holds the raw column values of a template row.
type templateDest struct {
	tenantID             sql.NullString
	isDefault, isSystem  int
	design               string
	createdAt, updatedAt string
}

func (d *templateDest) targets(t *Template) []any {
	return []any{
		&t.ID, &d.tenantID, &t.Name, &d.isDefault, &d.isSystem,
		&t.ProductTypeFilter, &t.WidthMM, &t.HeightMM, &d.design, &d.createdAt, &d.updatedAt,
	}
}

func (d *templateDest) apply(t *Template) {
	t.Scope = scopeFromColumn(d.tenantID)
	t.IsDefault = d.isDefault != 0
	t.IsSystem = d.isSystem != 0
	if d.design != "" {
		t.Design = json.RawMessage(d.design)
	}
	t.CreatedAt = parseTime(d.createdAt)
	t.UpdatedAt = parseTime(d.updatedAt)
}

func scanTemplate(s scanner) (*Template, error) {
	var t Template
	var d templateDest
	if err := s.Scan(d.targets(&t)...); err != nil {
		return nil, err
	}
	d.apply(&t)
	return &t, nil
}

func collectTemplates(rows *sql.Rows) ([]Template, error) {
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating template rows: %w", err)
	}
	return templates, nil
}

func collectModelMappings(rows *sql.Rows) ([]ModelMapping, error) {
	defer rows.Close()

	var mappings []ModelMapping
	for rows.Next() {
		var m ModelMapping
		var tenantID sql.NullString
		var createdAt string
		var d templateDest
		dest := append([]any{&m.ID, &tenantID, &m.DeviceModel, &m.TemplateID, &m.Priority, &createdAt}, d.targets(&m.Template)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning model mapping row: %w", err)
		}
		m.Scope = scopeFromColumn(tenantID)
		m.CreatedAt = parseTime(createdAt)
		d.apply(&m.Template)
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model mapping rows: %w", err)
	}
	return mappings, nil
}

func collectTypeMappings(rows *sql.Rows) ([]TypeMapping, error) {
	defer rows.Close()

	var mappings []TypeMapping
	for rows.Next() {
		var m TypeMapping
		var tenantID sql.NullString
		var createdAt string
		var d templateDest
		dest := append([]any{&m.ID, &tenantID, &m.Category, &m.TemplateID, &m.Priority, &createdAt}, d.targets(&m.Template)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning type mapping row: %w", err)
		}
		m.Scope = scopeFromColumn(tenantID)
		m.CreatedAt = parseTime(createdAt)
		d.apply(&m.Template)
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating type mapping rows: %w", err)
	}
	return mappings, nil
}

// parseTime reads an RFC3339 column written by this package.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // format is controlled by this package
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
