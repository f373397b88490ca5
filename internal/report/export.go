package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportFormat defines the export file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// Exporter writes reports to disk.
type Exporter struct {
	format   ExportFormat
	filePath string
}

// NewExporter creates an exporter for one output file.
func NewExporter(format ExportFormat, filePath string) *Exporter {
	return &Exporter{format: format, filePath: filePath}
}

// Export writes the report in the configured format.
func (e *Exporter) Export(report *Report) error {
	switch e.format {
	case FormatCSV:
		return e.exportCSV(report)
	case FormatXLSX:
		return e.exportXLSX(report)
	case FormatJSON:
		return e.exportJSON(report)
	default:
		return fmt.Errorf("unsupported export format: %s", e.format)
	}
}

func (e *Exporter) exportCSV(report *Report) error {
	file, err := os.Create(e.filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// UTF-8 BOM for Excel compatibility.
	file.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(report.Definition.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range report.Rows {
		values := make([]string, len(report.Definition.Columns))
		for i, col := range report.Definition.Columns {
			if val, ok := row.Values[col]; ok {
				values[i] = formatValue(val)
			}
		}
		if err := writer.Write(values); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func (e *Exporter) exportXLSX(report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := sanitizeSheetName(report.Definition.Name)
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1565C0"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})

	for i, col := range report.Definition.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 15 {
			width = 15
		}
		if width > 60 {
			width = 60
		}
		f.SetColWidth(sheetName, colName, colName, width)
	}

	for rowIdx, row := range report.Rows {
		for i, col := range report.Definition.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			if val, ok := row.Values[col]; ok {
				f.SetCellValue(sheetName, cell, val)
			}
		}
	}

	if err := f.SaveAs(e.filePath); err != nil {
		return fmt.Errorf("failed to save xlsx: %w", err)
	}
	return nil
}

func (e *Exporter) exportJSON(report *Report) error {
	rows := make([]map[string]interface{}, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, row.Values)
	}
	payload := map[string]interface{}{
		"report":       report.Definition.Name,
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
		"rows":         rows,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(e.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sanitizeSheetName strips characters Excel forbids in sheet names.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-")
	name = replacer.Replace(name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
