package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// dueSoonDays bounds the "due soon" window of the calibration summary.
const dueSoonDays = 30

// Summary holds the report counters for the registry.
type Summary struct {
	GeneratedAt string             `json:"generatedAt"`
	Assets      AssetSummary       `json:"assets"`
	Maintenance MaintenanceSummary `json:"maintenance"`
	Calibration CalibrationSummary `json:"calibration"`
}

// AssetSummary counts assets by location and by type.
type AssetSummary struct {
	Total      int            `json:"total"`
	ByLocation map[string]int `json:"byLocation"`
	ByType     map[string]int `json:"byType"`
}

// MaintenanceSummary counts assets by repair status.
type MaintenanceSummary struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	InProgress int            `json:"inProgress"`
	Done       int            `json:"done"`
	ByStatus   map[string]int `json:"byStatus"`
}

// CalibrationSummary counts calibration items by due date.
type CalibrationSummary struct {
	Total        int     `json:"total"`
	Overdue      int     `json:"overdue"`
	DueSoon      int     `json:"dueSoon"`
	DueThisMonth int     `json:"dueThisMonth"`
	NoDueDate    int     `json:"noDueDate"`
	WithFile     int     `json:"withFile"`
	ByMonth      [12]int `json:"byMonth"`
}

// typeFields are tried in order to classify an asset type.
var typeFields = []string{"ประเภท", "หมวดหมู่", "ชนิดครุภัณฑ์", "ประเภทเครื่องมือ", "กลุ่ม"}

// Summary computes the report counters as of now. Results are cached per
// document revision and calendar day.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return nil, err
	}

	key := doc.Revision + "|" + now.Format(registry.DateLayout)
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(key); ok {
			s.metrics.ObserveSummaryCache(true)
			return cached, nil
		}
		s.metrics.ObserveSummaryCache(false)
	}

	sum := BuildSummary(doc, now)
	if s.summaries != nil {
		s.summaries.Set(key, sum)
	}
	return sum, nil
}

// BuildSummary computes the report counters of doc. Due dates are compared
// at noon UTC of the calendar day of now.
func BuildSummary(doc *registry.Document, now time.Time) *Summary {
	today := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)

	sum := &Summary{
		GeneratedAt: registry.FormatTimestamp(now),
		Assets: AssetSummary{
			Total:      len(doc.Assets),
			ByLocation: map[string]int{},
			ByType:     map[string]int{},
		},
		Maintenance: MaintenanceSummary{
			Total:    len(doc.Assets),
			ByStatus: map[string]int{},
		},
		Calibration: CalibrationSummary{Total: len(doc.Calibration.Items)},
	}

	cal := &sum.Calibration
	for _, it := range doc.Calibration.Items {
		if due, ok := dueDate(it.Text(registry.FieldDueDate)); !ok {
			cal.NoDueDate++
		} else {
			days := int(due.Sub(today).Hours() / 24)
			if due.Before(today) {
				cal.Overdue++
			} else if days <= dueSoonDays {
				cal.DueSoon++
			}
			if due.Year() == today.Year() && due.Month() == today.Month() {
				cal.DueThisMonth++
			}
			cal.ByMonth[due.Month()-1]++
		}
		if it.Text(registry.FieldCalibrationFile) != "" {
			cal.WithFile++
		}
	}

	m := &sum.Maintenance
	for _, a := range doc.Assets {
		status := orUnspecified(a.Text(registry.FieldMaintenance))
		m.ByStatus[status]++
		switch {
		case strings.Contains(status, registry.MarkerPending):
			m.Pending++
		case strings.Contains(status, registry.MarkerInProgress):
			m.InProgress++
		case strings.Contains(status, registry.MarkerDone):
			m.Done++
		}

		sum.Assets.ByLocation[orUnspecified(a.Text(registry.FieldLocation))]++
		sum.Assets.ByType[orUnspecified(assetType(a))]++
	}
	return sum
}

var leadingDate = regexp.MustCompile(`^\s*(\d{4})-(\d{2})-(\d{2})`)

// dueDate reads a leading YYYY-MM-DD as noon UTC. Out of range days roll
// over into the next month.
func dueDate(s string) (time.Time, bool) {
	m := leadingDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return time.Date(y, time.Month(mo), d, 12, 0, 0, 0, time.UTC), true
}

func assetType(a *registry.Record) string {
	for _, f := range typeFields {
		if t := a.Text(f); t != "" {
			return t
		}
	}
	return ""
}

func orUnspecified(s string) string {
	if s == "" {
		return registry.Unspecified
	}
	return s
}
