package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitoverdie1/uph-mem-system/pkg/maintenance"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

func TestGetMeta(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/meta", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["maintenanceStatusChoices"])
}

func TestNextCode(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	tests := []struct {
		query    string
		wantCode int
		wantNext string
	}{
		{"", http.StatusOK, "LAB-AS-EQ-A003"},
		{"?kind=gn", http.StatusOK, "LAB-AS-GN-A001"},
		{"?kind=zz", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/next-code"+tt.query, nil, adminHeaders)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantNext != "" {
				assert.Equal(t, tt.wantNext, decodeBody(t, rec)["next"])
			}
		})
	}
}

func TestAssetLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	rec := env.doJSON(t, http.MethodPost, "/api/assets", map[string]any{
		registry.FieldCode: "LAB-AS-EQ-A003",
		registry.FieldName: "Oven",
	}, adminHeaders)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)["asset"].(map[string]any)
	id := created[registry.FieldID].(string)
	assert.True(t, strings.HasPrefix(id, registry.AssetIDPrefix))

	rec = env.doJSON(t, http.MethodPost, "/api/assets", map[string]any{registry.FieldCode: "LAB-AS-EQ-A003"}, adminHeaders)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_code", decodeBody(t, rec)["error"])

	rec = env.doJSON(t, http.MethodPut, "/api/assets/"+id, map[string]any{
		registry.FieldID:       "something-else",
		registry.FieldLocation: "Store room",
	}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody(t, rec)["asset"].(map[string]any)
	assert.Equal(t, id, updated[registry.FieldID])
	assert.Equal(t, "Store room", updated[registry.FieldLocation])
	assert.Equal(t, "Oven", updated[registry.FieldName])

	rec = env.do(t, http.MethodGet, "/api/assets?q=store", nil, staffHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["assets"], 1)

	rec = env.do(t, http.MethodDelete, "/api/assets/"+id, nil, adminHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/assets/"+id, nil, adminHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAsset_RejectsNonObjectBody(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/assets", strings.NewReader(`["not", "an", "object"]`), adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["ok"])
}

func TestGetAssetByCode(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	rec := env.do(t, http.MethodGet, "/api/assets/by-code/LAB-AS-EQ-A002", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	asset := decodeBody(t, rec)["asset"].(map[string]any)
	assert.Equal(t, "Centrifuge", asset[registry.FieldName])

	rec = env.do(t, http.MethodGet, "/api/assets/by-code/NOPE", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRepairWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())
	target := "/api/assets/by-code/LAB-AS-EQ-A001"

	// Staff reports a repair; anything they set besides maintenance fields is dropped.
	rec := env.doJSON(t, http.MethodPut, target, map[string]any{
		registry.FieldMaintenance: "ชำรุด",
		registry.FieldRepairNote:  "motor noise",
		registry.FieldName:        "renamed",
	}, staffHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	asset := decodeBody(t, rec)["asset"].(map[string]any)
	assert.Equal(t, registry.StatusPending, asset[registry.FieldMaintenance])
	assert.Equal(t, "Nurse Joy", asset[registry.FieldRepairReporter])
	assert.Equal(t, "Vacuum pump", asset[registry.FieldName])

	// Anonymous callers cannot report.
	rec = env.doJSON(t, http.MethodPut, target, map[string]any{registry.FieldMaintenance: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, target+":reject", strings.NewReader(`{}`), adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, target+":confirm", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	asset = decodeBody(t, rec)["asset"].(map[string]any)
	assert.Equal(t, registry.StatusInProgress, asset[registry.FieldMaintenance])
	assert.Equal(t, "admin", asset[registry.FieldRepairConfirmer])

	rec = env.do(t, http.MethodPost, target+":confirm", nil, adminHeaders)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, maintenance.ErrCodeInvalidTransition, body["error"])
	assert.Equal(t, string(maintenance.StateInProgress), body["from"])

	// A new report can be rejected with a reason.
	rec = env.doJSON(t, http.MethodPut, target, map[string]any{registry.FieldMaintenance: "ชำรุดอีก"}, staffHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.doJSON(t, http.MethodPost, target+":reject", map[string]string{"reason": "duplicate report"}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	asset = decodeBody(t, rec)["asset"].(map[string]any)
	assert.Equal(t, registry.StatusRejected, asset[registry.FieldMaintenance])
	assert.Equal(t, "duplicate report", asset[registry.FieldRepairRejectReason])
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())
	png := []byte("\x89PNG fake image")

	rec := env.upload(t, "/api/assets/A-000001/image", "image", "photo.PNG", png, nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ref := decodeBody(t, rec)["imagePath"].(string)
	assert.Equal(t, "/assets/images/A-000001.png", ref)

	rec = env.do(t, http.MethodGet, ref, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	// A different extension replaces the stored object.
	rec = env.upload(t, "/api/assets/A-000001/image", "image", "photo.jpg", []byte("jpeg"), nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := env.files.Open(context.Background(), ref)
	assert.Error(t, err)

	rec = env.upload(t, "/api/assets/A-999999/image", "image", "photo.png", png, nil, adminHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, err = env.files.Open(context.Background(), "/assets/images/A-999999.png")
	assert.Error(t, err)

	rec = env.upload(t, "/api/assets/A-000001/image", "file", "photo.png", png, nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAssetRemovesImage(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	rec := env.upload(t, "/api/assets/A-000002/image", "image", "c.png", []byte("img"), nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/assets/A-000002", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rc, err := env.files.Open(context.Background(), "/assets/images/A-000002.png")
	if err == nil {
		_, _ = io.Copy(io.Discard, rc)
		_ = rc.Close()
	}
	assert.Error(t, err)
}
