package api

import (
	"net/http"

)

// handleSync refreshes the tenant's inventory from the Dashboard API.
// The sync itself records the audit entry.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "inventory sync not configured")
		return
	}

	result, err := s.syncer.Sync(r.Context(), tenantFrom(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err, "inventory sync failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
