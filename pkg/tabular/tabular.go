// Package tabular reads and writes simple header+rows tables as CSV or XLSX.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Supported formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a sheet of string cells with a header row
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

// ParseFormat normalizes a format name, defaulting to CSV.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// FormatFromFilename guesses the format from a file extension.
func FormatFromFilename(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Write encodes the table in the given format.
func Write(w io.Writer, format string, t *Table) error {
	if format == FormatXLSX {
		return WriteXLSX(w, t)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the table to a single-sheet workbook with a styled header.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}

	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for rowIdx, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if n := len(t.Headers); n > 0 {
		last, _ := excelize.ColumnNumberToName(n)
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return err
		}
	}

	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// Read decodes a CSV or XLSX upload into a table. For XLSX the first sheet
// is used. Empty trailing rows are dropped.
func Read(r io.Reader, format string) (*Table, error) {
	var rows [][]string

	switch format {
	case FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		rows, err = f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err = reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
	}

	for len(rows) > 0 && isBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	return &Table{Headers: headers, Rows: rows[1:]}, nil
}

// Column returns the index of a header (case-insensitive) or -1.
func (t *Table) Column(name string) int {
	name = strings.ToLower(name)
	for i, h := range t.Headers {
		if strings.ToLower(h) == name {
			return i
		}
	}
	return -1
}

// Serve writes the table as a file download.
func Serve(w http.ResponseWriter, basename, format string, t *Table) error {
	var buf bytes.Buffer
	if err := Write(&buf, format, t); err != nil {
		return err
	}

	if format == FormatXLSX {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", basename, format))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
