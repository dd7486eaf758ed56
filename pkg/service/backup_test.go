package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

func TestService_ExportBackupOfEmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	data, err := svc.ExportBackup(context.Background())
	require.NoError(t, err)
	doc, err := registry.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, registry.StandardStatusChoices(), doc.MaintenanceStatusChoices)
}

func TestService_RestoreBackup(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	stats, err := svc.RestoreBackup(ctx, []byte(`{
		"users": [{"username": "admin"}],
		"assets": [{"id": "A-000001", "รหัสเครื่องมือห้องปฏิบัติการ": "EQ-1"}],
		"maintenanceStatusChoices": ["ยังไม่เคยแจ้งซ่อม", "ซ่อมเสร็จแล้ว"]
	}`), "admin")
	require.NoError(t, err)
	assert.Equal(t, BackupStats{Assets: 1, Calibration: 0}, stats)

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc.MaintenanceStatusChoices, registry.StatusPending)
	assert.Contains(t, doc.Extra, "users")

	exported, err := svc.ExportBackup(ctx)
	require.NoError(t, err)
	raw, err := store.Raw(ctx)
	require.NoError(t, err)
	assert.Equal(t, raw, exported)
}

func TestService_RestoreBackupRejectsCorruptInput(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for _, in := range []string{"", "  ", "null", "[1,2]", "{not json"} {
		_, err := svc.RestoreBackup(ctx, []byte(in), "admin")
		assert.ErrorIs(t, err, registry.ErrCorruptDocument, "%q", in)
	}

	raw, err := store.Raw(ctx)
	require.NoError(t, err)
	assert.Empty(t, raw)
}
