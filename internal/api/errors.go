package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/inventory"
	"github.com/nerrad567/devicelabel-core/internal/matching"
	"github.com/nerrad567/devicelabel-core/internal/meraki"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes clients can switch on.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeForbidden          = "forbidden"
	ErrCodeConflict           = "conflict"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeNoTemplates        = "no_templates_configured"
	ErrCodeUpstream           = "upstream_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)

// domainErrors maps service sentinels to responses, first match wins. An
// empty message passes the error text through.
var domainErrors = []struct {
	targets []error
	status  int
	code    string
	message string
}{
	{
		targets: []error{matching.ErrNoTemplatesAvailable},
		status:  http.StatusServiceUnavailable,
		code:    ErrCodeNoTemplates,
		message: "no label templates are configured for this tenant",
	},
	{
		targets: []error{matching.ErrTenantMismatch},
		status:  http.StatusForbidden,
		code:    ErrCodeForbidden,
		message: "device belongs to another tenant",
	},
	{
		targets: []error{
			catalog.ErrTemplateNotFound, catalog.ErrMappingNotFound,
			inventory.ErrDeviceNotFound, inventory.ErrConnectionNotFound,
		},
		status: http.StatusNotFound,
		code:   ErrCodeNotFound,
	},
	{
		targets: []error{catalog.ErrInvalidTemplate, catalog.ErrInvalidMapping},
		status:  http.StatusBadRequest,
		code:    ErrCodeValidation,
	},
	{
		targets: []error{catalog.ErrSystemTemplate},
		status:  http.StatusConflict,
		code:    ErrCodeConflict,
	},
	{
		targets: []error{
			meraki.ErrUnauthorized, meraki.ErrMissingCredentials,
			meraki.ErrNotFound, meraki.ErrRequestFailed,
		},
		status: http.StatusBadGateway,
		code:   ErrCodeUpstream,
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may have gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeDomainError answers with the response registered for err in
// domainErrors. Anything else is logged and becomes a 500 carrying only
// message.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, message string) {
	for _, m := range domainErrors {
		for _, target := range m.targets {
			if !errors.Is(err, target) {
				continue
			}
			text := m.message
			if text == "" {
				text = err.Error()
			}
			writeError(w, m.status, m.code, text)
			return
		}
	}

	s.logger.Error(message,
		"error", err,
		"path", r.URL.Path,
		"request_id", requestFrom(r.Context()).id,
	)
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
