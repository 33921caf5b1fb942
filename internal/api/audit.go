package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/audit"
)

// auditChanSize bounds queued audit entries. When the writer falls behind,
// new entries are dropped rather than delaying responses.
const auditChanSize = 256

// auditWriteTimeout bounds a single audit insert.
const auditWriteTimeout = 5 * time.Second

// auditLog queues an entry attributed to the request's tenant and user.
func (s *Server) auditLog(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.auditCh == nil {
		return
	}

	caller := tenantFrom(r.Context())
	entry := &audit.AuditLog{
		TenantID:   caller.ID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     caller.UserID,
		Source:     audit.SourceAPI,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit queue full, entry dropped",
			"tenant_id", caller.ID,
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
		)
	}
}

// drainAuditLog writes queued entries one at a time. Once ctx is done it
// flushes what is already queued and returns.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for len(s.auditCh) > 0 {
				s.writeAudit(<-s.auditCh)
			}
			return
		}
	}
}

func (s *Server) writeAudit(entry *audit.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			"tenant_id", entry.TenantID,
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}

// handleListAuditLogs pages through the caller's audit trail, newest first.
// Filters: action, entity_type, entity_id, since (RFC 3339), limit, offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		TenantID:   tenantFrom(r.Context()).ID,
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil || filter.Offset < 0 {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}
	if v := q.Get("since"); v != "" {
		if filter.Since, err = time.Parse(time.RFC3339, v); err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query value; empty is zero.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
