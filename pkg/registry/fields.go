package registry

import "time"

// Canonical field names as persisted in the registry document.
const (
	FieldID           = "id"
	FieldCode         = "รหัสเครื่องมือห้องปฏิบัติการ"
	FieldName         = "ชื่อ"
	FieldModel        = "รุ่น"
	FieldSerial       = "หมายเลขเครื่อง"
	FieldStatus       = "สถานะ"
	FieldMaintenance  = "สถานะแจ้งซ่อม"
	FieldLocation     = "สถานที่ใช้งาน (ปัจจุบัน)"
	FieldImage        = "รูปภาพครุภัณฑ์"
	FieldManufacturer = "ผู้ผลิต"
	FieldAssetID      = "AssetID"
	FieldUnitCost     = "ต้นทุนต่อหน่วย"

	FieldLastCalibration     = "วันที่สอบเทียบล่าสุด"
	FieldDueDate             = "วันครบกำหนดสอบเทียบ"
	FieldFrequency           = "สอบเทียบ"
	FieldCalibrationFile     = "ไฟล์ผลสอบเทียบ"
	FieldCalibrationFileName = "ชื่อไฟล์ผลสอบเทียบ"
)

// Maintenance stamp fields written by the repair workflow.
const (
	FieldRepairReportedDate = "วันที่แจ้งซ่อมล่าสุด"
	FieldRepairNote         = "หมายเหตุการซ่อม"
	FieldRepairReporter     = "ผู้แจ้งซ่อม"
	FieldRepairReportedAt   = "เวลาที่แจ้งซ่อม"

	FieldRepairConfirmedDate = "วันที่ยืนยันแจ้งซ่อม"
	FieldRepairConfirmer     = "ผู้ยืนยันแจ้งซ่อม"
	FieldRepairConfirmedAt   = "เวลาที่ยืนยันแจ้งซ่อม"

	FieldRepairRejectedDate = "วันที่ตีกลับแจ้งซ่อม"
	FieldRepairRejecter     = "ผู้ตีกลับแจ้งซ่อม"
	FieldRepairRejectReason = "เหตุผลตีกลับแจ้งซ่อม"
	FieldRepairRejectedAt   = "เวลาที่ตีกลับแจ้งซ่อม"
)

// Unspecified is the bucket label used when a grouped field is blank.
const Unspecified = "ไม่ระบุ"

// Record id prefixes per collection.
const (
	AssetIDPrefix       = "A-"
	CalibrationIDPrefix = "C-"
)

// Layouts for dates and instants stored in records.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// FormatDate renders t as a UTC calendar date.
func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// FormatTimestamp renders t as a UTC instant with millisecond precision.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }
