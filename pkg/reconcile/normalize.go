package reconcile

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

const dateLayout = registry.DateLayout

var (
	dayFirstDate = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
	frequency    = regexp.MustCompile(`(?i)(\d+)\s*(months|month|m)`)
	yearRun      = regexp.MustCompile(`\s*\d{4}`)
)

var isoLayouts = []string{time.RFC3339, dateLayout, "2006/01/02", "2006-1-2", "2006/1/2"}

// NormalizeDate renders a cell as YYYY-MM-DD. Numbers are read as Excel
// serial dates. When the value cannot be read as a date the trimmed original
// is returned with ok false.
func NormalizeDate(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if t.IsZero() {
			return "", false
		}
		return t.UTC().Format(dateLayout), true
	case float64:
		return serialDate(t)
	case int:
		return serialDate(float64(t))
	case int64:
		return serialDate(float64(t))
	}

	s := strings.TrimSpace(registry.Stringify(v))
	if s == "" {
		return "", false
	}
	for _, layout := range isoLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC().Format(dateLayout), true
		}
	}
	if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		d := time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
		if d.Day() == day && int(d.Month()) == month {
			return d.Format(dateLayout), true
		}
	}
	return s, false
}

func serialDate(serial float64) (string, bool) {
	if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return registry.Stringify(serial), false
	}
	d, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return registry.Stringify(serial), false
	}
	return d.Format(dateLayout), true
}

// normalizeDateField rewrites a date field in place when it holds a value.
func normalizeDateField(row *registry.Record, field string) {
	v, ok := row.Get(field)
	if !ok || cellText(v) == "" {
		return
	}
	s, _ := NormalizeDate(v)
	row.Set(field, s)
}

var truthyMonthTokens = map[string]struct{}{
	"1": {}, "x": {}, "X": {}, "✓": {}, "y": {}, "Y": {}, "true": {}, "TRUE": {},
}

// MonthFlag reduces a month plan cell to "1" when it marks the month, keeps
// any other non-empty text trimmed, and leaves blanks empty.
func MonthFlag(v any) string {
	s := cellText(v)
	if _, ok := truthyMonthTokens[s]; ok {
		return "1"
	}
	return s
}

// DeriveDueDate adds the month count found in freq (for example "12 month")
// to the last calibration date.
func DeriveDueDate(last, freq string) (string, bool) {
	m := frequency.FindStringSubmatch(freq)
	if m == nil {
		return "", false
	}
	months, err := strconv.Atoi(m[1])
	if err != nil || months <= 0 {
		return "", false
	}
	ymd, ok := NormalizeDate(last)
	if !ok {
		return "", false
	}
	d, err := time.Parse(dateLayout, ymd)
	if err != nil {
		return "", false
	}
	return d.AddDate(0, months, 0).Format(dateLayout), true
}

// CleanNumber converts numeric text such as "12,500.50" to a float64.
// Anything that does not parse to a finite number is returned unchanged.
func CleanNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return v
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return v
	}
	return n
}

// InferLocation takes a location from a calibration plan sheet name such
// as "ห้องปฏิบัติการ 2567": the text before the first four-digit run.
func InferLocation(sheetName string) string {
	return strings.TrimSpace(yearRun.Split(sheetName, 2)[0])
}
