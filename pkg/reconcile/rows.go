package reconcile

import (
	"strconv"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// NormalizeAssetRow maps a raw spreadsheet row onto the canonical asset
// fields. Extra columns are kept in their original order. Rows without a
// code are rejected.
func NormalizeAssetRow(raw *registry.Record, defaultStatus string) (*registry.Record, bool) {
	row := raw.Clone()

	if _, ok := canonicalize(row, registry.FieldCode, AliasCode); !ok {
		return nil, false
	}
	canonicalize(row, registry.FieldName, AliasName)
	canonicalize(row, registry.FieldModel, AliasModel)
	canonicalize(row, registry.FieldSerial, AliasSerial)
	canonicalize(row, registry.FieldStatus, AliasStatus)
	canonicalize(row, registry.FieldLocation, AliasLocation)

	if defaultStatus == "" {
		defaultStatus = registry.StatusNeverReported
	}
	if row.Text(registry.FieldMaintenance) == "" {
		row.Set(registry.FieldMaintenance, defaultStatus)
	}
	if row.Text(registry.FieldImage) == "" {
		row.Set(registry.FieldImage, "")
	}
	if v, ok := row.Get(registry.FieldUnitCost); ok {
		row.Set(registry.FieldUnitCost, CleanNumber(v))
	}

	if row.ID() == "" {
		row.Set(registry.FieldID, registry.NewID(registry.AssetIDPrefix))
	}
	return row, true
}

// NormalizeCalibrationRow maps a raw calibration plan row onto the canonical
// calibration fields. A row needs at least a code, a name or a serial number.
// sheetName supplies the location when the row has none.
func NormalizeCalibrationRow(raw *registry.Record, sheetName string) (*registry.Record, bool) {
	row := raw.Clone()

	_, hasCode := canonicalize(row, registry.FieldCode, AliasCode)
	_, hasName := canonicalize(row, registry.FieldName, AliasName)
	_, hasSerial := canonicalize(row, registry.FieldSerial, AliasSerial)
	if !hasCode && !hasName && !hasSerial {
		return nil, false
	}
	canonicalize(row, registry.FieldModel, AliasModel)
	canonicalize(row, registry.FieldAssetID, AliasAssetID)
	canonicalize(row, registry.FieldManufacturer, AliasManufacturer)

	if _, ok := canonicalize(row, registry.FieldLocation, AliasLocation); !ok {
		if loc := InferLocation(sheetName); loc != "" {
			row.Set(registry.FieldLocation, loc)
		}
	}

	canonicalize(row, registry.FieldLastCalibration, AliasLastCalibration)
	canonicalize(row, registry.FieldDueDate, AliasDueDate)
	normalizeDateField(row, registry.FieldLastCalibration)
	normalizeDateField(row, registry.FieldDueDate)

	if row.Text(registry.FieldDueDate) == "" {
		last := row.Text(registry.FieldLastCalibration)
		if due, ok := DeriveDueDate(last, PickFirst(row, AliasFrequency...)); ok {
			row.Set(registry.FieldDueDate, due)
		}
	}

	for m := 1; m <= 12; m++ {
		key := strconv.Itoa(m)
		row.Set(key, MonthFlag(monthCell(row, m)))
	}

	if row.ID() == "" {
		row.Set(registry.FieldID, registry.NewID(registry.CalibrationIDPrefix))
	}
	return row, true
}

// monthCell reads the plan mark for month m from the first month column
// present, whether headed "3", "เดือน3", "Month3" or "M3".
func monthCell(row *registry.Record, m int) any {
	n := strconv.Itoa(m)
	for _, key := range []string{n, "เดือน" + n, "Month" + n, "M" + n} {
		if v, ok := row.Get(key); ok && v != nil {
			return v
		}
	}
	return ""
}
