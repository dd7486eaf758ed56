package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

const utf8BOM = "\ufeff"

// ReadCSV reads a comma separated file as a workbook with one sheet named
// after the file. All cells are text.
func ReadCSV(r io.Reader, name string) (*Workbook, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrUnreadableSource, err)
	}

	sheetName := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if sheetName == "" || sheetName == "." {
		sheetName = "Sheet1"
	}

	sheet := Sheet{Name: sheetName, Rows: make([][]any, len(records))}
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, cell := range rec {
			if i == 0 && j == 0 {
				cell = strings.TrimPrefix(cell, utf8BOM)
			}
			row[j] = cell
		}
		sheet.Rows[i] = row
	}
	return &Workbook{Name: name, Sheets: []Sheet{sheet}}, nil
}
