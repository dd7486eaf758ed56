package reconcile

import (
	"fmt"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// ImportOptions describes one import request.
type ImportOptions struct {
	// Policy defaults to merge for assets and replace for calibration.
	Policy Policy
	// Sheet restricts the import to one sheet. Assets otherwise read the
	// first sheet, calibration reads all of them.
	Sheet      string
	SourceFile string
	Now        time.Time
}

// ImportResult reports what an import did to the document.
type ImportResult struct {
	Mode Policy `json:"mode"`
	Counts
	Sheets []string `json:"sheets"`
}

// ImportAssets reconciles the asset sheet of wb into doc.Assets. The
// document is changed in memory only.
func ImportAssets(doc *registry.Document, wb *Workbook, opts ImportOptions) (ImportResult, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyMerge
	}

	name := opts.Sheet
	if name == "" && len(wb.Sheets) > 0 {
		name = wb.Sheets[0].Name
	}
	sheet, ok := wb.Sheet(name)
	if !ok {
		return ImportResult{}, fmt.Errorf("%w: sheet %q not found", registry.ErrUnreadableSource, name)
	}

	defaultStatus := doc.DefaultMaintenanceStatus()
	var rows []*registry.Record
	skipped := 0
	for _, raw := range SheetObjects(sheet, false) {
		row, ok := NormalizeAssetRow(raw, defaultStatus)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	assets, counts := Merge(doc.Assets, rows, MergeOptions{
		Policy:   policy,
		Sticky:   []string{registry.FieldImage},
		IDPrefix: registry.AssetIDPrefix,
	})
	counts.Skipped += skipped
	doc.Assets = assets

	return ImportResult{Mode: policy, Counts: counts, Sheets: []string{name}}, nil
}

// ImportCalibration reconciles every sheet of wb, or only opts.Sheet, into
// the calibration plan and records the import in the calibration meta.
// A requested sheet that does not exist contributes no rows.
func ImportCalibration(doc *registry.Document, wb *Workbook, opts ImportOptions) (ImportResult, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyReplace
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	names := wb.SheetNames()
	if opts.Sheet != "" {
		names = []string{opts.Sheet}
	}

	var rows []*registry.Record
	skipped := 0
	for _, name := range names {
		sheet, ok := wb.Sheet(name)
		if !ok {
			continue
		}
		for _, raw := range SheetObjects(sheet, true) {
			row, ok := NormalizeCalibrationRow(raw, name)
			if !ok {
				skipped++
				continue
			}
			rows = append(rows, row)
		}
	}

	items, counts := Merge(doc.Calibration.Items, rows, MergeOptions{
		Policy:       policy,
		AllowUnkeyed: true,
		Sticky:       []string{registry.FieldCalibrationFile, registry.FieldCalibrationFileName},
		IDPrefix:     registry.CalibrationIDPrefix,
	})
	counts.Skipped += skipped
	doc.Calibration.Items = items
	doc.Calibration.Meta = map[string]any{
		"importedAt": registry.FormatTimestamp(now),
		"sourceFile": opts.SourceFile,
		"sheets":     sheetList(names),
	}

	return ImportResult{Mode: policy, Counts: counts, Sheets: names}, nil
}

// sheetList stores sheet names the way they decode back from JSON.
func sheetList(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
