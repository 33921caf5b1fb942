// Package catalog stores label templates and the mapping tables that tie
// device models and device categories to them.
//
// Every template and mapping row carries a Scope: Global() rows are visible to
// every tenant, Tenant(id) rows only to that tenant. The nullable tenant_id
// column is converted to a Scope at the repository boundary and never leaks
// out of this package.
//
// Read queries return rows visible to a tenant ordered by ascending priority
// then ID. Authoring operations uphold the catalog invariants:
//   - at most one default template per scope (SetDefault clears the previous
//     default in the same transaction)
//   - system templates cannot be deleted
//   - a mapping may only reference a template visible to the mapping's scope
//
// Usage:
//
//	repo := catalog.NewSQLiteRepository(db.DB)
//	if _, err := catalog.SeedSystem(ctx, repo); err != nil {
//	    return err
//	}
//	rows, err := repo.ModelMappings(ctx, tenantID, "MS225-48FP")
package catalog
