package reconcile

import (
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Header aliases seen in registry and calibration plan spreadsheets. The
// canonical field always comes first.
var (
	AliasCode = []string{
		registry.FieldCode,
		"ID Code", "IDCode", "ID_Code",
		"รหัสครุภัณฑ์", "รหัสเครื่องมือ", "รหัส",
		"code", "Code", "CODE",
	}
	AliasName = []string{
		registry.FieldName,
		"Equipment", "เครื่องมือ", "ชื่อครุภัณฑ์",
		"name", "Name", "NAME",
	}
	AliasModel        = []string{registry.FieldModel, "Models", "Model", "model"}
	AliasManufacturer = []string{registry.FieldManufacturer, "Manufacture", "Manufacturer", "ผู้ผลิต/ยี่ห้อ"}
	AliasAssetID      = []string{registry.FieldAssetID, "Asset ID", "Asset Id", "Asset"}
	AliasSerial       = []string{registry.FieldSerial, "S/N", "SN", "Serial", "serial", "หมายเลขเครื่อง/Serial"}
	AliasLocation     = []string{registry.FieldLocation, "สถานที่ใช้งาน", "Location", "location"}
	AliasStatus       = []string{registry.FieldStatus, "Status", "status"}

	AliasLastCalibration = []string{
		registry.FieldLastCalibration,
		"Last Calibration", "Last Cal", "LastCal", "last_cal", "lastCal", "last",
	}
	AliasDueDate = []string{
		registry.FieldDueDate,
		"Due Date", "Due", "Due M/D/Y", "due_date", "dueDate", "due",
	}
	AliasFrequency = []string{registry.FieldFrequency, "Calibration", "frequency"}
)

// PickFirst returns the first alias whose value is non-empty after trimming.
// Numbers are rendered without trailing zeros.
func PickFirst(row *registry.Record, aliases ...string) string {
	v, ok := pickFirstValue(row, aliases...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(registry.Stringify(v))
}

// pickFirstValue is PickFirst without the conversion to text, so date serials
// and numbers reach their normalizers untouched.
func pickFirstValue(row *registry.Record, aliases ...string) (any, bool) {
	for _, key := range aliases {
		v, ok := row.Get(key)
		if !ok || v == nil {
			continue
		}
		if strings.TrimSpace(registry.Stringify(v)) != "" {
			return v, true
		}
	}
	return nil, false
}

// canonicalize copies the first aliased value into field when field itself
// is blank. It returns the picked value.
func canonicalize(row *registry.Record, field string, aliases []string) (any, bool) {
	v, ok := pickFirstValue(row, aliases...)
	if !ok {
		return nil, false
	}
	if row.Text(field) == "" {
		if s, isString := v.(string); isString {
			v = strings.TrimSpace(s)
		}
		row.Set(field, v)
	}
	return v, true
}
