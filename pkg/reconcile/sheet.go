// Package reconcile turns loosely structured spreadsheet extracts into
// canonical registry records and reconciles them with the stored collections.
package reconcile

import (
	"strconv"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Sheet is one named grid of cells. Cells are string, float64, time.Time,
// bool or nil.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook is an ordered set of sheets read from one source file.
type Workbook struct {
	Name   string
	Sheets []Sheet
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// Sheet returns the sheet with the given name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i], true
		}
	}
	return nil, false
}

// SheetObjects converts a sheet into raw rows keyed by header. With detect
// set, the best scoring header row is located first; otherwise, or when no
// row scores high enough, row 0 is the header. Empty header cells are
// dropped and rows without any non-blank cell are skipped. Under a detected
// header a repeated name takes the value of its last column; under row 0
// repeats are suffixed _1, _2 and so on.
func SheetObjects(sheet *Sheet, detect bool) []*registry.Record {
	if sheet == nil || len(sheet.Rows) == 0 {
		return nil
	}

	headerIdx, detected := 0, false
	if detect {
		if idx, ok := DetectHeader(sheet.Rows); ok {
			headerIdx, detected = idx, true
		}
	}

	header := headerNames(sheet.Rows[headerIdx], !detected)
	out := make([]*registry.Record, 0, len(sheet.Rows)-headerIdx-1)
	for _, cells := range sheet.Rows[headerIdx+1:] {
		if isBlankRow(cells) {
			continue
		}
		rec := registry.NewRecord()
		for c, key := range header {
			if key == "" {
				continue
			}
			var v any = ""
			if c < len(cells) && cells[c] != nil {
				v = cells[c]
			}
			rec.Set(key, v)
		}
		out = append(out, rec)
	}
	return out
}

// headerNames trims header cells. With suffix set, repeated names get _1,
// _2... appended; otherwise they are left as is and the later column wins.
func headerNames(cells []any, suffix bool) []string {
	names := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, cell := range cells {
		name := cellText(cell)
		if name == "" {
			continue
		}
		if n, dup := seen[name]; dup && suffix {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func isBlankRow(cells []any) bool {
	for _, c := range cells {
		if cellText(c) != "" {
			return false
		}
	}
	return true
}

func cellText(v any) string {
	return strings.TrimSpace(registry.Stringify(v))
}
