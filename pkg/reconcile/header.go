package reconcile

import (
	"strings"
)

const (
	headerScanLimit = 40
	minHeaderScore  = 3
)

// DetectHeader finds the row most likely to be the column header of a
// calibration plan that carries title rows above its table. The earliest
// row wins ties. ok is false when no row in the first 40 scores at least 3.
func DetectHeader(rows [][]any) (int, bool) {
	best, bestScore := -1, 0
	limit := min(headerScanLimit, len(rows))
	for i := 0; i < limit; i++ {
		if s := scoreHeaderRow(rows[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < minHeaderScore {
		return -1, false
	}
	return best, true
}

func scoreHeaderRow(row []any) int {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		cells = append(cells, cellText(c))
	}

	equals := func(needles ...string) bool {
		for _, c := range cells {
			for _, n := range needles {
				if strings.EqualFold(c, n) {
					return true
				}
			}
		}
		return false
	}
	contains := func(fold bool, needle string) bool {
		for _, c := range cells {
			if fold {
				c = strings.ToLower(c)
			}
			if strings.Contains(c, needle) {
				return true
			}
		}
		return false
	}

	score := 0
	if equals("ID Code") || contains(false, "รหัส") {
		score += 2
	}
	if equals("Equipment") || contains(false, "ชื่อ") {
		score += 2
	}
	if equals("S/N", "SN") || contains(false, "หมายเลข") {
		score += 2
	}
	if contains(true, "due") || contains(false, "ครบกำหนด") {
		score++
	}
	if equals("Models") || contains(false, "รุ่น") {
		score++
	}
	return score
}
