// file: internals/features/presence/report/sheet_xlsx.go
package report

import (
	"fmt"
	"io"
	"time"

	"crecheku_backend/internals/features/presence/dto"

	"github.com/xuri/excelize/v2"
)

const (
	sheetRecords = "Presence"
	sheetSummary = "Summary"
)

var recordHeader = []any{"Child ID", "Present", "Justified", "Reason", "Justification date", "Attachment", "Justified by"}

// WriteSheetXLSX renders one day's sheet as a workbook with a records tab and a summary tab.
func WriteSheetXLSX(w io.Writer, v *dto.SheetView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetRecords); err != nil {
		return err
	}
	if err := writeRecords(f, v); err != nil {
		return err
	}
	if err := writeSummary(f, v); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, v *dto.SheetView) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetRecords, "A1", &recordHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetRecords, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range v.Records {
		row := []any{r.ChildID, yesNo(r.Present), yesNo(r.Justification != nil), "", "", "", ""}
		if j := r.Justification; j != nil {
			row[3] = j.Reason
			row[4] = j.Date
			if j.AttachmentRef != nil {
				row[5] = *j.AttachmentRef
			}
			if j.JustifiedBy != nil {
				row[6] = *j.JustifiedBy
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetRecords, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetRecords, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetRecords, "D", "D", 40); err != nil {
		return err
	}
	return f.SetPanes(sheetRecords, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, v *dto.SheetView) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	rows := [][]any{
		{"Date", v.Date},
		{"Status", string(v.Status)},
		{"Validated by", deref(v.ValidatedBy)},
		{"Staff validated at", stamp(v.StaffValidatedAt)},
		{"Completed at", stamp(v.SecretaryValidatedAt)},
		{"Total", v.Summary.Total},
		{"Present", v.Summary.Present},
		{"Absent", v.Summary.Absent},
		{"Justified", v.Summary.Justified},
		{"Unresolved", v.Summary.Unresolved},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 22)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
