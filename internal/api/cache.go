package api

import (
	"net/http"

	"github.com/nerrad567/devicelabel-core/internal/audit"
)

// handleCacheStats reports match cache counters. The cache is shared by all
// tenants, so the counters are global.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resolver.Cache().Stats(r.Context()))
}

// handlePurgeCache drops every cached match so catalog edits apply at once.
func (s *Server) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.Cache().Purge(r.Context()); err != nil {
		s.writeDomainError(w, r, err, "failed to purge cache")
		return
	}

	s.auditLog(r, audit.ActionPurge, audit.EntityCache, "", nil)
	w.WriteHeader(http.StatusNoContent)
}
