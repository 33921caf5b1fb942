package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateTemplate implements Repository.
func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t *Template) error {
	if err := ValidateTemplate(t); err != nil {
		return err
	}
	t.Name = strings.TrimSpace(t.Name)
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now

	design := "{}"
	if len(t.Design) > 0 {
		design = string(t.Design)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		if t.IsDefault {
			if err := clearDefault(ctx, tx, t.Scope, now); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO templates (tenant_id, name, is_default, is_system, product_type_filter,
				width_mm, height_mm, design, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Scope.column(), t.Name, boolInt(t.IsDefault), boolInt(t.IsSystem), t.ProductTypeFilter,
			t.WidthMM, t.HeightMM, design, formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting template: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading template id: %w", err)
		}
		t.ID = id
		return nil
	})
}

// SetDefault implements Repository. The previous default of the scope is
// cleared in the same transaction so a scope never has two defaults.
func (r *SQLiteRepository) SetDefault(ctx context.Context, owner Scope, id int64) error {
	now := r.now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := ownedTemplate(ctx, tx, owner, id); err != nil {
			return err
		}
		if err := clearDefault(ctx, tx, owner, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE templates SET is_default = 1, updated_at = ? WHERE id = ?`,
			formatTime(now), id,
		); err != nil {
			return fmt.Errorf("setting default template: %w", err)
		}
		return nil
	})
}

// DeleteTemplate implements Repository. Mappings that reference the template
// are removed by the foreign key cascade.
func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, owner Scope, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		isSystem, err := ownedTemplate(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		if isSystem {
			return ErrSystemTemplate
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting template: %w", err)
		}
		return nil
	})
}

// CreateModelMapping implements Repository.
func (r *SQLiteRepository) CreateModelMapping(ctx context.Context, m *ModelMapping) error {
	if err := ValidateModelMapping(m); err != nil {
		return err
	}
	now := r.now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		tmpl, err := mappableTemplate(ctx, tx, m.Scope, m.TemplateID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO model_mappings (tenant_id, device_model, template_id, priority, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			m.Scope.column(), m.DeviceModel, m.TemplateID, m.Priority, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting model mapping: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading model mapping id: %w", err)
		}
		m.CreatedAt = now
		m.Template = *tmpl
		return nil
	})
}

// DeleteModelMapping implements Repository.
func (r *SQLiteRepository) DeleteModelMapping(ctx context.Context, owner Scope, id int64) error {
	return r.deleteMapping(ctx, "model_mappings", owner, id)
}

// CreateTypeMapping implements Repository.
func (r *SQLiteRepository) CreateTypeMapping(ctx context.Context, m *TypeMapping) error {
	if err := ValidateTypeMapping(m); err != nil {
		return err
	}
	now := r.now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		tmpl, err := mappableTemplate(ctx, tx, m.Scope, m.TemplateID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO type_mappings (tenant_id, category, template_id, priority, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			m.Scope.column(), m.Category, m.TemplateID, m.Priority, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting type mapping: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading type mapping id: %w", err)
		}
		m.CreatedAt = now
		m.Template = *tmpl
		return nil
	})
}

// DeleteTypeMapping implements Repository.
func (r *SQLiteRepository) DeleteTypeMapping(ctx context.Context, owner Scope, id int64) error {
	return r.deleteMapping(ctx, "type_mappings", owner, id)
}

// deleteMapping removes a row from one of the two mapping tables when the
// row belongs to owner. table is always a package constant.
func (r *SQLiteRepository) deleteMapping(ctx context.Context, table string, owner Scope, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND ", table) //nolint:gosec // table is a package constant
	args := []any{id}
	if owner.IsGlobal() {
		query += "tenant_id IS NULL"
	} else {
		query += "tenant_id = ?"
		args = append(args, owner.TenantID())
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ownedTemplate checks that template id exists in exactly scope owner and
// reports whether it is a system template.
func ownedTemplate(ctx context.Context, tx *sql.Tx, owner Scope, id int64) (bool, error) {
	var tenantID sql.NullString
	var isSystem int
	err := tx.QueryRowContext(ctx,
		`SELECT tenant_id, is_system FROM templates WHERE id = ?`, id,
	).Scan(&tenantID, &isSystem)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrTemplateNotFound
	}
	if err != nil {
		return false, fmt.Errorf("querying template: %w", err)
	}
	if !scopeFromColumn(tenantID).Equal(owner) {
		return false, ErrTemplateNotFound
	}
	return isSystem != 0, nil
}

// mappableTemplate loads the template a new mapping in scope would point to.
// A tenant mapping may use global or own templates; a global mapping only
// global templates.
func mappableTemplate(ctx context.Context, tx *sql.Tx, scope Scope, id int64) (*Template, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates t WHERE t.id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template %d does not exist", ErrInvalidMapping, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", err)
	}
	if !t.Scope.IsGlobal() && !t.Scope.Equal(scope) {
		return nil, fmt.Errorf("%w: template %d is not visible to %s", ErrInvalidMapping, id, scope)
	}
	return t, nil
}

func clearDefault(ctx context.Context, tx *sql.Tx, scope Scope, now time.Time) error {
	query := `UPDATE templates SET is_default = 0, updated_at = ? WHERE is_default = 1 AND `
	args := []any{formatTime(now)}
	if scope.IsGlobal() {
		query += "tenant_id IS NULL"
	} else {
		query += "tenant_id = ?"
		args = append(args, scope.TenantID())
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing default template: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
