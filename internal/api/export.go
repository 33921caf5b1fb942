package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExportAssignments renders the tenant's inventory and resolved
// templates as an XLSX workbook. The workbook is built in memory so a
// failed resolution still produces a JSON error response.
func (s *Server) handleExportAssignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFrom(ctx).ID

	devices, err := s.inventory.ListDevices(ctx, tenantID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list devices")
		return
	}

	assignments, err := export.BuildAssignments(ctx, s.resolver, tenantID, devices, s.exportConcurrency())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to resolve templates")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, tenantID, assignments); err != nil {
		s.writeDomainError(w, r, err, "failed to render workbook")
		return
	}

	filename := fmt.Sprintf("assignments-%s-%s.xlsx", tenantID, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	buf.WriteTo(w)
}
