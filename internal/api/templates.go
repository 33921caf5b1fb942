package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/devicelabel-core/internal/audit"
	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/matching"
)

// handleListTemplates returns every template visible to the tenant: its own
// plus the global ones.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.catalog.VisibleTemplates(r.Context(), tenantFrom(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "count": len(templates)})
}

type createTemplateRequest struct {
	Name              string          `json:"name"`
	WidthMM           float64         `json:"width_mm"`
	HeightMM          float64         `json:"height_mm"`
	ProductTypeFilter string          `json:"product_type_filter"`
	IsDefault         bool            `json:"is_default"`
	Design            json.RawMessage `json:"design"`
}

// handleCreateTemplate creates a template owned by the tenant.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	t := &catalog.Template{
		Scope:             tenantScope(r),
		Name:              req.Name,
		WidthMM:           req.WidthMM,
		HeightMM:          req.HeightMM,
		ProductTypeFilter: strings.TrimSpace(req.ProductTypeFilter),
		IsDefault:         req.IsDefault,
		Design:            req.Design,
	}
	if err := s.catalog.CreateTemplate(r.Context(), t); err != nil {
		s.writeDomainError(w, r, err, "failed to create template")
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityTemplate, idString(t.ID), map[string]any{
		"name":       t.Name,
		"is_default": t.IsDefault,
	})
	writeJSON(w, http.StatusCreated, t)
}

// handleSetDefaultTemplate makes a tenant template the tenant default.
func (s *Server) handleSetDefaultTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid template ID")
		return
	}
	if err := s.catalog.SetDefault(r.Context(), tenantScope(r), id); err != nil {
		s.writeDomainError(w, r, err, "failed to set default template")
		return
	}

	s.auditLog(r, audit.ActionSetDefault, audit.EntityTemplate, idString(id), nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteTemplate deletes a tenant template and its mappings.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid template ID")
		return
	}
	if err := s.catalog.DeleteTemplate(r.Context(), tenantScope(r), id); err != nil {
		s.writeDomainError(w, r, err, "failed to delete template")
		return
	}

	s.auditLog(r, audit.ActionDelete, audit.EntityTemplate, idString(id), nil)
	w.WriteHeader(http.StatusNoContent)
}

// mappingRequest creates a model or type mapping. Priority defaults to
// catalog.DefaultPriority when omitted; 0 is a valid explicit priority.
type mappingRequest struct {
	DeviceModel string `json:"device_model"`
	Category    string `json:"category"`
	TemplateID  int64  `json:"template_id"`
	Priority    *int   `json:"priority"`
}

func (m mappingRequest) priority() int {
	if m.Priority == nil {
		return catalog.DefaultPriority
	}
	return *m.Priority
}

func (s *Server) handleListModelMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.catalog.ListModelMappings(r.Context(), tenantFrom(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list model mappings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

func (s *Server) handleCreateModelMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	m := &catalog.ModelMapping{
		Scope:       tenantScope(r),
		DeviceModel: strings.TrimSpace(req.DeviceModel),
		TemplateID:  req.TemplateID,
		Priority:    req.priority(),
	}
	if err := s.catalog.CreateModelMapping(r.Context(), m); err != nil {
		s.writeDomainError(w, r, err, "failed to create model mapping")
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityModelMapping, idString(m.ID), map[string]any{
		"device_model": m.DeviceModel,
		"template_id":  m.TemplateID,
		"priority":     m.Priority,
	})
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteModelMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid mapping ID")
		return
	}
	if err := s.catalog.DeleteModelMapping(r.Context(), tenantScope(r), id); err != nil {
		s.writeDomainError(w, r, err, "failed to delete model mapping")
		return
	}

	s.auditLog(r, audit.ActionDelete, audit.EntityModelMapping, idString(id), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTypeMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.catalog.ListTypeMappings(r.Context(), tenantFrom(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list type mappings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

func (s *Server) handleCreateTypeMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	category, ok := matching.ParseCategory(strings.TrimSpace(req.Category))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("unknown category %q", req.Category))
		return
	}

	m := &catalog.TypeMapping{
		Scope:      tenantScope(r),
		Category:   string(category),
		TemplateID: req.TemplateID,
		Priority:   req.priority(),
	}
	if err := s.catalog.CreateTypeMapping(r.Context(), m); err != nil {
		s.writeDomainError(w, r, err, "failed to create type mapping")
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityTypeMapping, idString(m.ID), map[string]any{
		"category":    m.Category,
		"template_id": m.TemplateID,
		"priority":    m.Priority,
	})
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteTypeMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid mapping ID")
		return
	}
	if err := s.catalog.DeleteTypeMapping(r.Context(), tenantScope(r), id); err != nil {
		s.writeDomainError(w, r, err, "failed to delete type mapping")
		return
	}

	s.auditLog(r, audit.ActionDelete, audit.EntityTypeMapping, idString(id), nil)
	w.WriteHeader(http.StatusNoContent)
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
