// Package export renders stress history as an Excel workbook for admins.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mindmate-health/mindmate/internal/model"
)

// SheetName is the worksheet holding the records.
const SheetName = "Stress Results"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StressHeader is the header row, one column per StressRecord field.
var StressHeader = []string{
	"ID", "User", "Timestamp (UTC)", "Stress Level", "Score",
	"Blood Pressure", "BP Stage", "Sleep (h)", "Respiration (/min)", "Heart Rate (bpm)", "Advice",
}

var columnWidths = []float64{8, 30, 22, 14, 8, 16, 24, 10, 18, 16, 80}

// WriteStressWorkbook writes records to w as an .xlsx workbook.
func WriteStressWorkbook(w io.Writer, records []model.StressRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("export: advice style: %w", err)
	}

	header := make([]any, len(StressHeader))
	for i, h := range StressHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(StressHeader))
	if err != nil {
		return fmt.Errorf("export: header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("export: style header: %w", err)
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}

	for i, r := range records {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", row, err)
		}
		values := []any{
			r.ID, r.User, r.Timestamp.UTC().Format("2006-01-02 15:04:05"), r.StressLevel, r.Score,
			r.BP, r.BPStage, r.Sleep, r.Resp, r.Heart, r.Advice,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("export: write row %d: %w", row, err)
		}
		adviceCell := fmt.Sprintf("%s%d", lastCol, row)
		if err := f.SetCellStyle(SheetName, adviceCell, adviceCell, wrapStyle); err != nil {
			return fmt.Errorf("export: style row %d: %w", row, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
