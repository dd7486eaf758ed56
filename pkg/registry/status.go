package registry

import "strings"

// Standard maintenance status labels.
const (
	StatusNeverReported  = "ยังไม่เคยแจ้งซ่อม"
	StatusPending        = "แจ้งซ่อมแล้ว - รอยืนยัน"
	StatusRejected       = "แจ้งซ่อมแล้ว - ตีกลับ"
	StatusInProgress     = "แจ้งซ่อมแล้ว - กำลังดำเนินการ"
	StatusDone           = "ซ่อมเสร็จแล้ว"
	StatusDecommissioned = "ปลดระวาง / รอจำหน่าย"
)

// Label fragments used to recognize statuses that were renamed by users.
const (
	MarkerNeverReported  = "ยังไม่เคย"
	MarkerPending        = "รอยืนยัน"
	MarkerRejected       = "ตีกลับ"
	MarkerInProgress     = "ดำเนิน"
	MarkerDone           = "เสร็จ"
	MarkerDecommissioned = "ปลดระวาง"
)

// StandardStatusChoices returns the default maintenance status list in display order.
func StandardStatusChoices() []string {
	return []string{
		StatusNeverReported,
		StatusPending,
		StatusRejected,
		StatusInProgress,
		StatusDone,
		StatusDecommissioned,
	}
}

// normalizeStatusChoices injects the pending and rejected labels when an
// existing list lacks them, leaving every other entry where it was.
func normalizeStatusChoices(choices []string) []string {
	if len(choices) == 0 {
		return StandardStatusChoices()
	}

	if indexContaining(choices, MarkerPending) < 0 {
		at := indexContaining(choices, MarkerNeverReported) + 1
		if at == 0 {
			at = 1
		}
		choices = insertAt(choices, at, StatusPending)
	}

	if indexContaining(choices, MarkerRejected) < 0 {
		at := indexContaining(choices, MarkerPending) + 1
		if at == 0 {
			at = 2
		}
		choices = insertAt(choices, at, StatusRejected)
	}

	return choices
}

func indexContaining(list []string, marker string) int {
	for i, s := range list {
		if strings.Contains(s, marker) {
			return i
		}
	}
	return -1
}

func insertAt(list []string, at int, value string) []string {
	if at > len(list) {
		at = len(list)
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list[:at]...)
	out = append(out, value)
	return append(out, list[at:]...)
}
