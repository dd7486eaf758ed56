package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitoverdie1/uph-mem-system/pkg/maintenance"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
	"github.com/Kitoverdie1/uph-mem-system/pkg/sequence"
)

func assetDocument() *registry.Document {
	doc := registry.NewDocument()
	doc.Assets = []*registry.Record{
		registry.RecordFrom(
			registry.FieldID, "A-000001",
			registry.FieldCode, "LAB-AS-EQ-A007",
			registry.FieldName, "Vacuum PUMP",
			registry.FieldLocation, "ห้อง 101",
			registry.FieldMaintenance, registry.StatusNeverReported,
		),
		registry.RecordFrom(
			registry.FieldID, "A-000002",
			registry.FieldCode, "LAB-AS-GN-A002",
			registry.FieldName, "Balance",
			registry.FieldSerial, "SN-9981",
			registry.FieldMaintenance, registry.StatusPending,
		),
	}
	return doc
}

var (
	admin = maintenance.Actor{Identity: "admin", DisplayName: "Admin", Privileged: true}
	user  = maintenance.Actor{Identity: "somchai", DisplayName: "สมชาย"}
)

func TestService_CreateAsset(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())
	ctx := context.Background()

	created, err := svc.CreateAsset(ctx, registry.RecordFrom(
		registry.FieldID, "caller-id",
		registry.FieldCode, "LAB-AS-EQ-A008",
		registry.FieldName, "Oven",
	), "admin")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.ID(), registry.AssetIDPrefix))
	assert.Len(t, created.ID(), 8)
	assert.Equal(t, registry.StatusNeverReported, created.Text(registry.FieldMaintenance))
	assert.True(t, created.Has(registry.FieldImage))

	assets, err := svc.ListAssets(ctx, "")
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, "LAB-AS-EQ-A008", assets[0].Code())

	_, err = svc.CreateAsset(ctx, registry.RecordFrom(registry.FieldCode, "LAB-AS-EQ-A008"), "admin")
	assert.ErrorIs(t, err, registry.ErrDuplicateCode)

	_, err = svc.CreateAsset(ctx, registry.RecordFrom(registry.FieldCode, "  "), "admin")
	assert.ErrorIs(t, err, registry.ErrInvalidInput)
}

func TestService_ListAssets(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())
	ctx := context.Background()

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"LAB-AS-EQ-A007", "LAB-AS-GN-A002"}},
		{"pump", []string{"LAB-AS-EQ-A007"}},
		{"  sn-99 ", []string{"LAB-AS-GN-A002"}},
		{"101", []string{"LAB-AS-EQ-A007"}},
		{"gn-a", []string{"LAB-AS-GN-A002"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assets, err := svc.ListAssets(ctx, tt.q)
			require.NoError(t, err)
			got := make([]string, 0, len(assets))
			for _, a := range assets {
				got = append(got, a.Code())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_UpdateAsset(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())
	ctx := context.Background()

	updated, err := svc.UpdateAsset(ctx, "A-000001", registry.RecordFrom(
		registry.FieldID, "A-FFFFFF",
		registry.FieldName, "Rotary pump",
		"หมายเหตุ", "new column",
	), "admin")
	require.NoError(t, err)
	assert.Equal(t, "A-000001", updated.ID())
	assert.Equal(t, "Rotary pump", updated.Text(registry.FieldName))
	assert.Equal(t, "new column", updated.Text("หมายเหตุ"))

	_, err = svc.UpdateAsset(ctx, "A-000001", registry.RecordFrom(registry.FieldCode, "LAB-AS-GN-A002"), "admin")
	assert.ErrorIs(t, err, registry.ErrDuplicateCode)

	_, err = svc.UpdateAsset(ctx, "A-000001", registry.RecordFrom(registry.FieldCode, "LAB-AS-EQ-A007"), "admin")
	assert.NoError(t, err, "keeping its own code is not a duplicate")

	_, err = svc.UpdateAsset(ctx, "A-404", registry.RecordFrom(registry.FieldName, "x"), "admin")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestService_DeleteAndImage(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())
	ctx := context.Background()

	prev, err := svc.SetAssetImage(ctx, "A-000002", "/assets/images/A-000002.png", "admin")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = svc.SetAssetImage(ctx, "A-000002", "/assets/images/A-000002.jpg", "admin")
	require.NoError(t, err)
	assert.Equal(t, "/assets/images/A-000002.png", prev)

	removed, err := svc.DeleteAsset(ctx, "A-000002", "admin")
	require.NoError(t, err)
	assert.Equal(t, "/assets/images/A-000002.jpg", removed.Text(registry.FieldImage))

	_, err = svc.AssetByCode(ctx, "LAB-AS-GN-A002")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestService_UpdateAssetByCode_UserReportIsCoercedToPending(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())
	ctx := context.Background()

	rec, err := svc.UpdateAssetByCode(ctx, "LAB-AS-EQ-A007", registry.RecordFrom(
		registry.FieldMaintenance, registry.StatusDone,
		registry.FieldRepairNote, "motor noise",
		registry.FieldName, "renamed",
	), user)
	require.NoError(t, err)

	assert.Equal(t, registry.StatusPending, rec.Text(registry.FieldMaintenance))
	assert.Equal(t, "motor noise", rec.Text(registry.FieldRepairNote))
	assert.Equal(t, "Vacuum PUMP", rec.Text(registry.FieldName))
	assert.Equal(t, "2024-06-15", rec.Text(registry.FieldRepairReportedDate))
	assert.Equal(t, "สมชาย", rec.Text(registry.FieldRepairReporter))
	assert.Equal(t, "2024-06-15T09:30:00.000Z", rec.Text(registry.FieldRepairReportedAt))

	stored, err := svc.AssetByCode(ctx, "LAB-AS-EQ-A007")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusPending, stored.Text(registry.FieldMaintenance))
}

func TestService_UpdateAssetByCode_AdminCodeClash(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())

	_, err := svc.UpdateAssetByCode(context.Background(), "LAB-AS-EQ-A007",
		registry.RecordFrom(registry.FieldCode, "LAB-AS-GN-A002"), admin)
	assert.ErrorIs(t, err, registry.ErrDuplicateCode)
}

func TestService_ConfirmAndRejectRepair(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, assetDocument())
	ctx := context.Background()

	_, err := svc.ConfirmRepair(ctx, "LAB-AS-GN-A002", user)
	assert.ErrorIs(t, err, registry.ErrForbidden)

	_, err = svc.RejectRepair(ctx, "LAB-AS-GN-A002", admin, "  ")
	assert.ErrorIs(t, err, maintenance.ErrReasonRequired)
	assert.ErrorIs(t, err, registry.ErrInvalidInput)

	rec, err := svc.ConfirmRepair(ctx, "LAB-AS-GN-A002", admin)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusInProgress, rec.Text(registry.FieldMaintenance))
	assert.Equal(t, "Admin", rec.Text(registry.FieldRepairConfirmer))

	_, err = svc.RejectRepair(ctx, "LAB-AS-GN-A002", admin, "duplicate report")
	assert.True(t, maintenance.IsTransitionError(err))

	_, err = svc.ConfirmRepair(ctx, "NOPE", admin)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestService_NextCode(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	code, err := svc.NextCode(ctx, sequence.KindEquipment)
	require.NoError(t, err)
	assert.Equal(t, "LAB-AS-EQ-A001", code)

	seed(t, store, assetDocument())
	code, err = svc.NextCode(ctx, sequence.KindEquipment)
	require.NoError(t, err)
	assert.Equal(t, "LAB-AS-EQ-A008", code)

	code, err = svc.NextCode(ctx, sequence.KindGeneral)
	require.NoError(t, err)
	assert.Equal(t, "LAB-AS-GN-A003", code)
}
