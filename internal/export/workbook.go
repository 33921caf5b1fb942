package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the assignments.
const SheetName = "Assignments"

// Header is the first row of the assignment sheet.
var Header = []string{
	"Serial",
	"Name",
	"Model",
	"Product Type",
	"Network ID",
	"Template ID",
	"Template",
	"Label Size (mm)",
	"Reason",
	"Confidence",
	"Matched By",
}

var columnWidths = []float64{18, 28, 14, 14, 22, 12, 28, 16, 16, 12, 18}

// WriteWorkbook renders assignments as an XLSX workbook to w.
func WriteWorkbook(w io.Writer, tenantID string, assignments []Assignment) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory file; WriteTo has already flushed

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Label assignments",
		Subject: tenantID,
		Creator: "devicelabel",
	}); err != nil {
		return fmt.Errorf("setting document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	for i, a := range assignments {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := assignmentRow(a)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if len(assignments) > 0 {
		if err := f.AutoFilter(SheetName, "A1:"+lastCol+strconv.Itoa(len(assignments)+1), nil); err != nil {
			return fmt.Errorf("adding filter: %w", err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func assignmentRow(a Assignment) []any {
	t := a.Match.Template
	return []any{
		a.Device.Serial,
		a.Device.Name,
		a.Device.Model,
		a.Device.ProductType,
		a.Device.NetworkID,
		t.ID,
		t.Name,
		fmt.Sprintf("%gx%g", t.WidthMM, t.HeightMM),
		string(a.Match.Reason),
		a.Match.Confidence,
		a.Match.MatchedBy,
	}
}
