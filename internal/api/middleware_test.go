package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/logging"
)

func withLogOutput(buf *bytes.Buffer) envOption {
	return func(d *Deps) {
		d.Logger = logging.NewWithWriter(config.LoggingConfig{Level: "info"}, "test", buf)
	}
}

func TestRequestID_Rejected(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{strings.Repeat("a", maxRequestIDLength+1), "has space", "tab\there"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", id)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)

		got := w.Header().Get("X-Request-ID")
		if got == "" || got == id {
			t.Errorf("X-Request-ID %q was echoed as %q, want a generated one", id, got)
		}
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, withLogOutput(&buf))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/Q2XX-9999/match", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, tenantAcme, time.Hour))
	req.Header.Set("X-Request-ID", "req-log-1")
	env.handler.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil && rec["msg"] == "http request" {
			record = rec
		}
	}
	if record == nil {
		t.Fatalf("no access log record in %q", buf.String())
	}

	want := map[string]any{
		"route":      "/api/v1/devices/{serial}/match",
		"path":       "/api/v1/devices/Q2XX-9999/match",
		"status":     float64(http.StatusNotFound),
		"request_id": "req-log-1",
		"tenant_id":  tenantAcme,
	}
	for k, v := range want {
		if record[k] != v {
			t.Errorf("%s = %v, want %v", k, record[k], v)
		}
	}
	if record["bytes"].(float64) <= 0 {
		t.Errorf("bytes = %v, want the error body size", record["bytes"])
	}
}

func TestAccessLog_Unauthenticated(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, withLogOutput(&buf))

	env.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil))
	if strings.Contains(buf.String(), `"tenant_id"`) {
		t.Errorf("unauthenticated request logged a tenant: %s", buf.String())
	}
}

func TestResponseRecorder_FirstStatusWins(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: inner, status: http.StatusOK}

	rec.Write([]byte("ok")) //nolint:errcheck // recorder never fails
	rec.WriteHeader(http.StatusTeapot)

	if rec.status != http.StatusOK || rec.bytes != 2 {
		t.Errorf("status = %d bytes = %d, want 200 and 2", rec.status, rec.bytes)
	}
	if rec.Unwrap() != inner {
		t.Error("Unwrap() should return the wrapped writer")
	}
}
