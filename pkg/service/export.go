package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// topGroups limits the location and type tables of the report workbook.
const topGroups = 30

// ExportAssets lays the asset list out as one sheet.
func (s *Service) ExportAssets(ctx context.Context) ([]reconcile.OutputSheet, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return []reconcile.OutputSheet{
		reconcile.RecordsSheet("Assets", doc.Assets, registry.FieldID),
	}, nil
}

// ExportCalibration lays the calibration plan out as one sheet. Result file
// references are made absolute against baseURL.
func (s *Service) ExportCalibration(ctx context.Context, baseURL string) ([]reconcile.OutputSheet, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return []reconcile.OutputSheet{
		reconcile.RecordsSheet("Calibration", withAbsoluteFiles(doc.Calibration.Items, baseURL)),
	}, nil
}

// ExportReports builds the report workbook: the summary counters followed by
// the asset, calibration, maintenance and result file tables.
func (s *Service) ExportReports(ctx context.Context, now time.Time, baseURL string) ([]reconcile.OutputSheet, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	sum := BuildSummary(doc, now)
	items := withAbsoluteFiles(doc.Calibration.Items, baseURL)

	return []reconcile.OutputSheet{
		summarySheet(sum),
		reconcile.RecordsSheet("Assets", doc.Assets),
		reconcile.RecordsSheet("Calibration", items),
		projectSheet("Maintenance", doc.Assets, maintenanceColumns, nil),
		projectSheet("CalibrationFiles", items, calibrationFileColumns, func(r *registry.Record) bool {
			return r.Text(registry.FieldCalibrationFile) != ""
		}),
	}, nil
}

var maintenanceColumns = []string{
	registry.FieldCode,
	registry.FieldName,
	registry.FieldModel,
	registry.FieldSerial,
	registry.FieldLocation,
	registry.FieldMaintenance,
	registry.FieldRepairReportedDate,
	registry.FieldRepairNote,
}

var calibrationFileColumns = []string{
	registry.FieldCode,
	registry.FieldName,
	registry.FieldDueDate,
	registry.FieldCalibrationFile,
	registry.FieldCalibrationFileName,
}

func summarySheet(sum *Summary) reconcile.OutputSheet {
	rows := [][]any{
		{"UPH MEM System - รายงานสรุป (Export)"},
		{"Generated At", sum.GeneratedAt},
		{},
		{"สรุปครุภัณฑ์"},
		{"รวมครุภัณฑ์ทั้งหมด", sum.Assets.Total},
		{},
		{"สรุปแจ้งซ่อม/บำรุงรักษา (จากครุภัณฑ์)"},
		{"รอยืนยัน", sum.Maintenance.Pending},
		{"กำลังดำเนินการ", sum.Maintenance.InProgress},
		{"เสร็จสิ้น", sum.Maintenance.Done},
		{},
		{"สรุปแผนสอบเทียบ"},
		{"รวมรายการสอบเทียบ", sum.Calibration.Total},
		{"เกินกำหนด", sum.Calibration.Overdue},
		{"ใกล้ถึงกำหนด (≤ 30 วัน)", sum.Calibration.DueSoon},
		{"กำหนดภายในเดือนนี้", sum.Calibration.DueThisMonth},
		{"ไม่มีวันครบกำหนด", sum.Calibration.NoDueDate},
		{"มีไฟล์ผลสอบเทียบแนบแล้ว", sum.Calibration.WithFile},
		{},
		{"สถานะแจ้งซ่อม (แยกตามสถานะ)", "จำนวน"},
	}
	rows = appendCounts(rows, sum.Maintenance.ByStatus, 0)
	rows = append(rows, []any{}, []any{"สถานที่ใช้งาน (Top 30)", "จำนวน"})
	rows = appendCounts(rows, sum.Assets.ByLocation, topGroups)
	rows = append(rows, []any{}, []any{"ประเภท/หมวดหมู่ (Top 30)", "จำนวน"})
	rows = appendCounts(rows, sum.Assets.ByType, topGroups)
	return reconcile.OutputSheet{Name: "Summary", Rows: rows}
}

// appendCounts adds one row per group, largest first. limit 0 keeps all.
func appendCounts(rows [][]any, counts map[string]int, limit int) [][]any {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	for _, k := range keys {
		rows = append(rows, []any{k, counts[k]})
	}
	return rows
}

// projectSheet writes the given columns of the records that pass keep.
func projectSheet(name string, records []*registry.Record, columns []string, keep func(*registry.Record) bool) reconcile.OutputSheet {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = r.Text(c)
		}
		rows = append(rows, row)
	}
	return reconcile.OutputSheet{Name: name, Header: columns, Rows: rows}
}

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// withAbsoluteFiles returns copies of items whose result file reference is
// rooted at baseURL.
func withAbsoluteFiles(items []*registry.Record, baseURL string) []*registry.Record {
	out := make([]*registry.Record, 0, len(items))
	for _, it := range items {
		c := it.Clone()
		c.Set(registry.FieldCalibrationFile, fileURL(it.Text(registry.FieldCalibrationFile), baseURL))
		out = append(out, c)
	}
	return out
}

func fileURL(ref, baseURL string) string {
	if ref == "" || absoluteURL.MatchString(ref) {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return strings.TrimSuffix(baseURL, "/") + ref
}
