package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Everything else acts on behalf of the token's tenant
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/match", s.handleMatch)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{serial}/match", s.handleDeviceMatch)
				r.Get("/{serial}/alternates", s.handleDeviceAlternates)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.handleListTemplates)
				r.Post("/", s.handleCreateTemplate)
				r.Put("/{id}/default", s.handleSetDefaultTemplate)
				r.Delete("/{id}", s.handleDeleteTemplate)
			})

			r.Route("/mappings", func(r chi.Router) {
				r.Get("/model", s.handleListModelMappings)
				r.Post("/model", s.handleCreateModelMapping)
				r.Delete("/model/{id}", s.handleDeleteModelMapping)
				r.Get("/type", s.handleListTypeMappings)
				r.Post("/type", s.handleCreateTypeMapping)
				r.Delete("/type/{id}", s.handleDeleteTypeMapping)
			})

			r.Post("/inventory/sync", s.handleSync)
			r.Get("/export/assignments.xlsx", s.handleExportAssignments)

			r.Get("/cache/stats", s.handleCacheStats)
			r.Delete("/cache", s.handlePurgeCache)

			r.Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
