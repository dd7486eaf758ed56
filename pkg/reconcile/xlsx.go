package reconcile

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// XLSXContentType is the media type of workbooks produced by WriteXLSX.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReadWorkbook reads r as CSV when name ends in .csv and as an Excel workbook
// otherwise.
func ReadWorkbook(r io.Reader, name string) (*Workbook, error) {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return ReadCSV(r, name)
	}
	return ReadXLSX(r, name)
}

// ReadXLSX reads every sheet of an Excel workbook. Numeric cells, date cells
// included, come back as float64 serials so the date normalizer sees them.
func ReadXLSX(r io.Reader, name string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrUnreadableSource, err)
	}
	defer func() { _ = f.Close() }()

	wb := &Workbook{Name: name}
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", registry.ErrUnreadableSource, sheetName, err)
		}
		sheet := Sheet{Name: sheetName, Rows: make([][]any, len(rows))}
		for r, cells := range rows {
			row := make([]any, len(cells))
			for c, text := range cells {
				row[c] = typedCell(f, sheetName, c+1, r+1, text)
			}
			sheet.Rows[r] = row
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func typedCell(f *excelize.File, sheet string, col, row int, text string) any {
	if text == "" {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return text
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return text
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return n
		}
	case excelize.CellTypeBool:
		if b, err := strconv.ParseBool(text); err == nil {
			return b
		}
	}
	return text
}

// OutputSheet is one sheet of an exported workbook. A nil Header writes Rows
// as they are.
type OutputSheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// RecordsSheet lays records out as a table. Columns follow lead, then every
// other field in the order it is first seen.
func RecordsSheet(name string, records []*registry.Record, lead ...string) OutputSheet {
	var header []string
	seen := map[string]bool{}
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			header = append(header, k)
		}
	}
	for _, k := range lead {
		add(k)
	}
	for _, r := range records {
		for _, k := range r.Keys() {
			add(k)
		}
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row := make([]any, len(header))
		for i, k := range header {
			v, _ := r.Get(k)
			row[i] = exportValue(v)
		}
		rows = append(rows, row)
	}
	return OutputSheet{Name: name, Header: header, Rows: rows}
}

func exportValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, float64, bool, int, int64:
		return v
	default:
		return registry.Stringify(v)
	}
}

// WriteXLSX writes sheets as an Excel workbook in the order given.
func WriteXLSX(w io.Writer, sheets []OutputSheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const defaultSheet = "Sheet1"
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.Name); err != nil {
				return fmt.Errorf("rename sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", s.Name, err)
		}

		line := 1
		if s.Header != nil {
			header := make([]any, len(s.Header))
			for j, h := range s.Header {
				header[j] = h
			}
			if err := writeRow(f, s.Name, line, header); err != nil {
				return err
			}
			line++
		}
		for _, row := range s.Rows {
			if err := writeRow(f, s.Name, line, row); err != nil {
				return err
			}
			line++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, line int, row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write sheet %q row %d: %w", sheet, line, err)
	}
	return nil
}
