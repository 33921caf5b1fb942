// Package api implements the HTTP REST API.
//
// This package provides:
//   - template resolution for inventory devices and ad hoc device bodies
//   - catalog authoring (templates, model and type mappings) per tenant
//   - inventory sync, XLSX assignment export and match cache operations
//   - middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Tenancy
//
// Every route except /api/v1/health requires an HS256 bearer token whose
// "tid" claim names a connection. Reads see global rows plus the tenant's
// own; writes only touch rows owned by the tenant.
//
// # Errors
//
// Errors use a single JSON envelope ({status, code, message}). A tenant with
// no visible templates gets 503 with code "no_templates_configured".
package api
