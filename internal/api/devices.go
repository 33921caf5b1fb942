package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/matching"
)

// matchResponse is returned by the match endpoints.
type matchResponse struct {
	Device any                  `json:"device"`
	Match  matching.MatchResult `json:"match"`
}

// handleListDevices returns the tenant's synced inventory.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.inventory.ListDevices(r.Context(), tenantFrom(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleDeviceMatch resolves the template for one inventory device.
func (s *Server) handleDeviceMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFrom(ctx).ID

	dev, err := s.inventory.GetDevice(ctx, tenantID, chi.URLParam(r, "serial"))
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load device")
		return
	}

	result, err := s.resolver.Resolve(ctx, dev.MatchDevice(), tenantID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to resolve template")
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Device: dev, Match: result})
}

// handleDeviceAlternates lists the other templates the tenant could print
// the device with.
//
// Query parameters:
//   - exclude: template ID to leave out (usually the resolved one)
func (s *Server) handleDeviceAlternates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFrom(ctx).ID

	var exclude *int64
	if v := r.URL.Query().Get("exclude"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "exclude must be a template ID")
			return
		}
		exclude = &id
	}

	dev, err := s.inventory.GetDevice(ctx, tenantID, chi.URLParam(r, "serial"))
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load device")
		return
	}

	templates, err := s.resolver.FindAlternates(ctx, dev.MatchDevice(), tenantID, exclude)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list alternates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "count": len(templates)})
}

// matchRequest is an ad hoc device that need not be in the inventory.
type matchRequest struct {
	Serial      string `json:"serial"`
	Model       string `json:"model"`
	ProductType string `json:"product_type"`
}

// handleMatch resolves a device described in the request body.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Model) == "" && strings.TrimSpace(req.ProductType) == "" {
		writeBadRequest(w, "model or product_type is required")
		return
	}

	device := matching.Device{
		Serial:      strings.TrimSpace(req.Serial),
		Model:       strings.TrimSpace(req.Model),
		ProductType: strings.TrimSpace(req.ProductType),
	}
	result, err := s.resolver.Resolve(r.Context(), device, tenantFrom(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to resolve template")
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Device: device, Match: result})
}

// pathID parses a numeric {id} URL parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// tenantScope is the catalog scope owned by the request's tenant.
func tenantScope(r *http.Request) catalog.Scope {
	return catalog.Tenant(tenantFrom(r.Context()).ID)
}
