package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

const (
	globalScopeText = "global"
	tenantPrefix    = "tenant:"
)

// Scope identifies who owns a catalog row: nobody (global) or one tenant.
// The zero value is Global().
type Scope struct {
	tenantID string
}

// Global returns the scope of rows visible to every tenant.
func Global() Scope {
	return Scope{}
}

// Tenant returns the scope owned by tenantID. An empty ID yields Global().
func Tenant(tenantID string) Scope {
	return Scope{tenantID: tenantID}
}

// IsGlobal reports whether the scope is global.
func (s Scope) IsGlobal() bool {
	return s.tenantID == ""
}

// TenantID returns the owning tenant, or "" for the global scope.
func (s Scope) TenantID() string {
	return s.tenantID
}

// VisibleTo reports whether rows in this scope can be seen by tenantID.
func (s Scope) VisibleTo(tenantID string) bool {
	return s.IsGlobal() || s.tenantID == tenantID
}

// Equal reports whether two scopes are the same.
func (s Scope) Equal(other Scope) bool {
	return s.tenantID == other.tenantID
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return globalScopeText
	}
	return tenantPrefix + s.tenantID
}

// MarshalText encodes the scope as "global" or "tenant:<id>".
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (s *Scope) UnmarshalText(text []byte) error {
	v := string(text)
	switch {
	case v == globalScopeText || v == "":
		*s = Global()
	case strings.HasPrefix(v, tenantPrefix) && len(v) > len(tenantPrefix):
		*s = Tenant(strings.TrimPrefix(v, tenantPrefix))
	default:
		return fmt.Errorf("catalog: invalid scope %q", v)
	}
	return nil
}

// scopeFromColumn converts a nullable tenant_id column to a Scope.
func scopeFromColumn(tenantID sql.NullString) Scope {
	if !tenantID.Valid {
		return Global()
	}
	return Tenant(tenantID.String)
}

// column returns the value to store in a nullable tenant_id column.
func (s Scope) column() any {
	if s.IsGlobal() {
		return nil
	}
	return s.tenantID
}
