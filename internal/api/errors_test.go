package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/inventory"
	"github.com/nerrad567/devicelabel-core/internal/matching"
	"github.com/nerrad567/devicelabel-core/internal/meraki"
)

func TestWriteDomainError(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{matching.ErrNoTemplatesAvailable, http.StatusServiceUnavailable, ErrCodeNoTemplates, "no label templates are configured for this tenant"},
		{fmt.Errorf("resolve: %w", matching.ErrTenantMismatch), http.StatusForbidden, ErrCodeForbidden, "device belongs to another tenant"},
		{catalog.ErrTemplateNotFound, http.StatusNotFound, ErrCodeNotFound, catalog.ErrTemplateNotFound.Error()},
		{inventory.ErrConnectionNotFound, http.StatusNotFound, ErrCodeNotFound, inventory.ErrConnectionNotFound.Error()},
		{fmt.Errorf("%w: width", catalog.ErrInvalidTemplate), http.StatusBadRequest, ErrCodeValidation, ""},
		{catalog.ErrSystemTemplate, http.StatusConflict, ErrCodeConflict, ""},
		{meraki.ErrUnauthorized, http.StatusBadGateway, ErrCodeUpstream, ""},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal, "failed to frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+"/"+tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)

			env.srv.writeDomainError(rec, req, tt.err, "failed to frobnicate")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body Error
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("body = %+v, want code %s", body, tt.wantCode)
			}
			want := tt.wantMsg
			if want == "" {
				want = tt.err.Error()
			}
			if body.Message != want {
				t.Errorf("message = %q, want %q", body.Message, want)
			}
		})
	}
}
