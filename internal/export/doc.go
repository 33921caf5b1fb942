// Package export produces label assignment sheets: one row per device with
// the template the resolver picked for it.
//
// BuildAssignments resolves a device list concurrently while keeping input
// order; WriteWorkbook renders the result as an XLSX workbook for print
// stations and spreadsheet review.
//
//	assignments, err := export.BuildAssignments(ctx, resolver, tenantID, devices, cfg.Export.Concurrency)
//	if err != nil {
//	    return err
//	}
//	err = export.WriteWorkbook(w, tenantID, assignments)
package export
