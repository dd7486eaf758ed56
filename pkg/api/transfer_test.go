package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Kitoverdie1/uph-mem-system/pkg/audit"
	"github.com/Kitoverdie1/uph-mem-system/pkg/jobs"
	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func assetWorkbook(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, reconcile.WriteXLSX(&buf, []reconcile.OutputSheet{{
		Name:   "Assets",
		Header: []string{"ID Code", "Equipment", "S/N"},
		Rows: [][]any{
			{"LAB-AS-EQ-A002", "Centrifuge v2", "C-9"},
			{"LAB-AS-EQ-A010", "Autoclave", "AC-1"},
			{"", "no code", ""},
		},
	}}))
	return buf.Bytes()
}

func TestImportExcel(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())
	data := assetWorkbook(t)

	rec := env.upload(t, "/api/import/excel", "excel", "assets.xlsx", data, map[string]string{"dryRun": "true"}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["dryRun"])
	assert.EqualValues(t, 1, body["created"])

	rec = env.do(t, http.MethodGet, "/api/assets", nil, adminHeaders)
	assert.Len(t, decodeBody(t, rec)["assets"], 2)

	rec = env.upload(t, "/api/import/excel", "excel", "assets.xlsx", data, map[string]string{"mode": "merge"}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "merge", body["mode"])
	assert.Equal(t, "Assets", body["sheet"])
	assert.EqualValues(t, 2, body["imported"])
	assert.EqualValues(t, 1, body["created"])
	assert.EqualValues(t, 1, body["updated"])
	assert.EqualValues(t, 1, body["skipped"])

	rec = env.do(t, http.MethodGet, "/api/assets/by-code/LAB-AS-EQ-A002", nil, nil)
	asset := decodeBody(t, rec)["asset"].(map[string]any)
	assert.Equal(t, "Centrifuge v2", asset[registry.FieldName])
	assert.Equal(t, "A-000002", asset[registry.FieldID])
}

func TestImportExcel_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, "/api/import/excel", "excel", "junk.xlsx", []byte("not a workbook"), nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/import/excel", strings.NewReader(`{}`), adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, "/api/import/excel", "excel", "assets.xlsx", assetWorkbook(t), nil, staffHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.upload(t, "/api/import/excel", "excel", "assets.xlsx", assetWorkbook(t), map[string]string{"async": "true"}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxUploadBytes = 1024
	env := newTestEnv(t, WithConfig(cfg))

	rec := env.upload(t, "/api/import/excel", "excel", "big.xlsx", bytes.Repeat([]byte("x"), 4096), nil, adminHeaders)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestImportCalibration(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	var buf bytes.Buffer
	require.NoError(t, reconcile.WriteXLSX(&buf, []reconcile.OutputSheet{
		{Name: "ห้องปฏิบัติการ 2567", Header: []string{"ID Code", "Equipment", "S/N"}, Rows: [][]any{{"CAL-7", "Balance", "B-1"}}},
		{Name: "ธนาคารเลือด 2567", Header: []string{"ID Code", "Equipment", "S/N"}, Rows: [][]any{{"CAL-8", "Fridge", "F-1"}}},
	}))

	rec := env.upload(t, "/api/calibration/import", "excel", "plan.xlsx", buf.Bytes(), nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "replace", body["mode"])
	assert.EqualValues(t, 2, body["created"])
	assert.Equal(t, []any{"ห้องปฏิบัติการ 2567", "ธนาคารเลือด 2567"}, body["sheets"])

	rec = env.do(t, http.MethodGet, "/api/calibration", nil, adminHeaders)
	body = decodeBody(t, rec)
	assert.Len(t, body["items"], 2)
	assert.Equal(t, "plan.xlsx", body["meta"].(map[string]any)["sourceFile"])
}

func TestQueuedImport(t *testing.T) {
	store := jobs.NewJobStore(openTestDB(t))
	require.NoError(t, store.AutoMigrate())
	cfg := DefaultConfig()
	cfg.SpoolDir = filepath.Join(t.TempDir(), "spool")
	env := newTestEnv(t, WithJobs(store), WithConfig(cfg))
	data := assetWorkbook(t)

	rec := env.upload(t, "/api/import/excel", "excel", "assets.xlsx", data, map[string]string{"async": "true", "mode": "replace"}, adminHeaders)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	jobID := body["jobId"].(string)
	assert.Equal(t, string(jobs.JobStateQueued), body["state"])

	job, err := store.Get(jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "assets", job.Kind)
	assert.Equal(t, "replace", job.Policy)
	assert.Equal(t, "admin", job.RequestedBy)
	assert.Equal(t, "assets.xlsx", job.SourceName)
	assert.Equal(t, job.SourcePath, job.CleanupPath)
	assert.FileExists(t, job.SourcePath)

	// The same file queued again returns the pending job.
	rec = env.upload(t, "/api/import/excel", "excel", "copy.xlsx", data, map[string]string{"async": "true"}, adminHeaders)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, jobID, decodeBody(t, rec)["jobId"])

	rec = env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil, adminHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/jobs/"+jobID+":cancel", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoFileExists(t, job.SourcePath)
	rec = env.do(t, http.MethodGet, "/api/jobs", nil, staffHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestQueuedCalibrationImportRecordsUploadName(t *testing.T) {
	store := jobs.NewJobStore(openTestDB(t))
	require.NoError(t, store.AutoMigrate())
	cfg := DefaultConfig()
	cfg.SpoolDir = filepath.Join(t.TempDir(), "spool")
	env := newTestEnv(t, WithJobs(store), WithConfig(cfg))

	var buf bytes.Buffer
	require.NoError(t, reconcile.WriteXLSX(&buf, []reconcile.OutputSheet{
		{Name: "ห้องปฏิบัติการ 2567", Header: []string{"ID Code", "Equipment", "S/N"}, Rows: [][]any{{"CAL-7", "Balance", "B-1"}}},
	}))
	rec := env.upload(t, "/api/calibration/import", "excel", "plan.xlsx", buf.Bytes(), map[string]string{"async": "true"}, adminHeaders)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decodeBody(t, rec)["jobId"].(string)
	queued, err := store.Get(jobID)
	require.NoError(t, err)

	jobCfg := jobs.DefaultJobConfig()
	jobCfg.PollInterval = 20 * time.Millisecond
	jobCfg.Concurrency = 1
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		jobs.NewWorkerPool(store, env.svc, jobCfg, nil).Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		job, err := store.Get(jobID)
		return err == nil && job != nil && job.State == jobs.JobStateSucceeded
	}, 5*time.Second, 20*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/calibration", nil, adminHeaders)
	body := decodeBody(t, rec)
	assert.Len(t, body["items"], 1)
	assert.Equal(t, "plan.xlsx", body["meta"].(map[string]any)["sourceFile"])
	assert.NoFileExists(t, queued.SourcePath)
}

func TestExportExcel(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	rec := env.do(t, http.MethodGet, "/api/export/excel", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, reconcile.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="UPH_MEM_assets.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	wb, err := reconcile.ReadWorkbook(bytes.NewReader(rec.Body.Bytes()), "export.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, wb.Sheets)
	assert.Len(t, wb.Sheets[0].Rows, 3)

	for _, target := range []string{"/api/calibration/export/excel", "/api/reports/export/excel"} {
		rec = env.do(t, http.MethodGet, target, nil, adminHeaders)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, reconcile.XLSXContentType, rec.Header().Get("Content-Type"), target)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleDocument())

	rec := env.do(t, http.MethodGet, "/api/export/db", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="db.json"`, rec.Header().Get("Content-Disposition"))
	backup := rec.Body.Bytes()

	rec = env.do(t, http.MethodDelete, "/api/assets/A-000001", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.upload(t, "/api/import/db", "json", "db.json", backup, nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["assets"])
	assert.EqualValues(t, 1, body["calibration"])

	rec = env.do(t, http.MethodPost, "/api/import/db", bytes.NewReader(backup), adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/import/db", strings.NewReader(`[1,2,3]`), adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/import/db", strings.NewReader(`{"assets":`), adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/assets", nil, adminHeaders)
	assert.Len(t, decodeBody(t, rec)["assets"], 2)
}

func TestAuditTrail(t *testing.T) {
	store := audit.NewStore(openTestDB(t))
	require.NoError(t, store.AutoMigrate())
	env := newTestEnv(t, WithAudit(store, audit.DefaultAuditConfig()))
	env.seed(t, sampleDocument())

	rec := env.do(t, http.MethodPost, "/api/assets/by-code/LAB-AS-EQ-A001:confirm", nil, staffHeaders)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.doJSON(t, http.MethodPut, "/api/assets/A-000002", map[string]any{registry.FieldLocation: "Lab 9"}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/assets", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	events, _, total, err := store.List(audit.ListFilter{}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	outcomes := map[string]string{}
	for _, ev := range events {
		outcomes[ev.Actor] = ev.Outcome
	}
	assert.Equal(t, "denied", outcomes["nurse"])
	assert.Equal(t, "success", outcomes["admin"])

	rec = env.do(t, http.MethodGet, "/api/audit", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
}
