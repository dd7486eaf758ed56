package reconcile

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

func TestNormalizeAssetRow(t *testing.T) {
	raw := registry.RecordFrom(
		"CODE", "EQ-1",
		"Name", "Centrifuge",
		"S/N", "SN-9",
		"Location", "Lab A",
		registry.FieldUnitCost, "12,000",
		"Extra", "x",
	)

	row, ok := NormalizeAssetRow(raw, registry.StatusNeverReported)
	require.True(t, ok)

	assert.Equal(t, "EQ-1", row.Code())
	assert.Equal(t, "Centrifuge", row.Text(registry.FieldName))
	assert.Equal(t, "SN-9", row.Text(registry.FieldSerial))
	assert.Equal(t, "Lab A", row.Text(registry.FieldLocation))
	assert.Equal(t, registry.StatusNeverReported, row.Text(registry.FieldMaintenance))
	assert.True(t, row.Has(registry.FieldImage))

	cost, _ := row.Get(registry.FieldUnitCost)
	assert.Equal(t, 12000.0, cost)

	assert.True(t, strings.HasPrefix(row.ID(), registry.AssetIDPrefix))
	assert.Len(t, row.ID(), len(registry.AssetIDPrefix)+6)

	// Source columns keep their place ahead of the canonical ones.
	assert.Equal(t, []string{"CODE", "Name", "S/N", "Location", registry.FieldUnitCost, "Extra"}, row.Keys()[:6])
	assert.Equal(t, "x", row.Text("Extra"))

	assert.False(t, raw.Has(registry.FieldCode), "input row must not be modified")
}

func TestNormalizeAssetRow_KeepsExistingValues(t *testing.T) {
	raw := registry.RecordFrom(
		registry.FieldID, "A-ABCDEF",
		registry.FieldCode, "EQ-2",
		"Code", "OTHER",
		registry.FieldMaintenance, registry.StatusDone,
		registry.FieldImage, "/assets/images/A-ABCDEF.png",
	)

	row, ok := NormalizeAssetRow(raw, "")
	require.True(t, ok)
	assert.Equal(t, "A-ABCDEF", row.ID())
	assert.Equal(t, "EQ-2", row.Code())
	assert.Equal(t, registry.StatusDone, row.Text(registry.FieldMaintenance))
	assert.Equal(t, "/assets/images/A-ABCDEF.png", row.Text(registry.FieldImage))
}

func TestNormalizeAssetRow_RequiresCode(t *testing.T) {
	_, ok := NormalizeAssetRow(registry.RecordFrom("Name", "No code", "CODE", "  "), "")
	assert.False(t, ok)
}

func TestNormalizeCalibrationRow(t *testing.T) {
	raw := registry.RecordFrom(
		"ID Code", "CAL-1",
		"Equipment", "Pipette",
		"Models", "P200",
		"S/N", "S1",
		"Due M/D/Y", 45292.0,
		"1", "x",
		"เดือน2", "✓",
		"Month3", "",
		"M4", "note",
	)

	row, ok := NormalizeCalibrationRow(raw, "ห้องปฏิบัติการ 2567")
	require.True(t, ok)

	assert.Equal(t, "CAL-1", row.Code())
	assert.Equal(t, "Pipette", row.Text(registry.FieldName))
	assert.Equal(t, "P200", row.Text(registry.FieldModel))
	assert.Equal(t, "S1", row.Text(registry.FieldSerial))
	assert.Equal(t, "2024-01-01", row.Text(registry.FieldDueDate))
	assert.Equal(t, "ห้องปฏิบัติการ", row.Text(registry.FieldLocation))

	assert.Equal(t, "1", row.Text("1"))
	assert.Equal(t, "1", row.Text("2"))
	assert.Equal(t, "", row.Text("3"))
	assert.Equal(t, "note", row.Text("4"))
	for m := 5; m <= 12; m++ {
		key := strconv.Itoa(m)
		assert.True(t, row.Has(key), "month %s", key)
		assert.Equal(t, "", row.Text(key))
	}

	assert.True(t, strings.HasPrefix(row.ID(), registry.CalibrationIDPrefix))
}

func TestNormalizeCalibrationRow_DerivesDueDate(t *testing.T) {
	raw := registry.RecordFrom(
		"รหัส", "CAL-2",
		registry.FieldLastCalibration, "15/01/2024",
		registry.FieldFrequency, "12 month",
	)

	row, ok := NormalizeCalibrationRow(raw, "")
	require.True(t, ok)
	assert.Equal(t, "2024-01-15", row.Text(registry.FieldLastCalibration))
	assert.Equal(t, "2025-01-15", row.Text(registry.FieldDueDate))
	assert.False(t, row.Has(registry.FieldLocation))
}

func TestNormalizeCalibrationRow_KeepsUnreadableDueDate(t *testing.T) {
	raw := registry.RecordFrom(
		"Equipment", "Balance",
		"Due", "  soon ",
		"Last Cal", "2024-01-15",
		"Calibration", "6 month",
		"Location", "Ward 3",
	)

	row, ok := NormalizeCalibrationRow(raw, "ห้องปฏิบัติการ 2567")
	require.True(t, ok)
	assert.Equal(t, "soon", row.Text(registry.FieldDueDate))
	assert.Equal(t, "Ward 3", row.Text(registry.FieldLocation))
	assert.Equal(t, "", row.Code())
}

func TestNormalizeCalibrationRow_RequiresIdentity(t *testing.T) {
	_, ok := NormalizeCalibrationRow(registry.RecordFrom("Models", "X", "Due", "2024-01-01"), "Sheet1")
	assert.False(t, ok)
}
