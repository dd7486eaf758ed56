package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/jobs"
	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
	"github.com/Kitoverdie1/uph-mem-system/pkg/service"
)

// Download names, kept from the files users already have on disk.
const (
	assetsWorkbookName      = "UPH_MEM_assets.xlsx"
	calibrationWorkbookName = "UPH_MEM_calibration.xlsx"
	reportsWorkbookName     = "UPH_MEM_reports.xlsx"
	backupName              = "db.json"
)

// importResponse reports an applied or previewed import.
type importResponse struct {
	OK     bool   `json:"ok"`
	DryRun bool   `json:"dryRun,omitempty"`
	Mode   string `json:"mode"`
	reconcile.Counts
	Sheet  string   `json:"sheet,omitempty"`
	Sheets []string `json:"sheets,omitempty"`
}

func (s *Server) importAssets(w http.ResponseWriter, r *http.Request) {
	s.importWorkbook(w, r, service.CollectionAssets)
}

func (s *Server) importCalibration(w http.ResponseWriter, r *http.Request) {
	s.importWorkbook(w, r, service.CollectionCalibration)
}

// importWorkbook reads the "excel" field and reconciles it into collection.
// Form values: mode (merge|replace), sheet, dryRun and async. Async imports
// are queued as jobs and answered with 202.
func (s *Server) importWorkbook(w http.ResponseWriter, r *http.Request, collection string) {
	file, err := s.formFile(w, r, "excel")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	policy := r.FormValue("mode")
	sheet := strings.TrimSpace(r.FormValue("sheet"))

	if boolParam(r, "async") {
		s.enqueueImport(w, r, collection, file, policy, sheet)
		return
	}

	wb, err := reconcile.ReadWorkbook(bytes.NewReader(file.Data), file.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req := service.ImportRequest{
		ImportOptions: reconcile.ImportOptions{
			Policy:     reconcile.ParsePolicy(policy, ""),
			Sheet:      sheet,
			SourceFile: file.Name,
		},
		DryRun: boolParam(r, "dryRun"),
		Actor:  caller(r).Name(),
	}

	var result reconcile.ImportResult
	if collection == service.CollectionCalibration {
		result, err = s.svc.ImportCalibration(r.Context(), wb, req)
	} else {
		result, err = s.svc.ImportAssets(r.Context(), wb, req)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := importResponse{OK: true, DryRun: req.DryRun, Mode: string(result.Mode), Counts: result.Counts}
	if collection == service.CollectionAssets && len(result.Sheets) > 0 {
		resp.Sheet = result.Sheets[0]
	} else {
		resp.Sheets = result.Sheets
	}
	writeJSON(w, http.StatusOK, resp)
}

// enqueueImport spools the upload and queues an import job for it. The same
// file queued twice while the first job is pending yields the first job.
func (s *Server) enqueueImport(w http.ResponseWriter, r *http.Request, collection string, file *upload, policy, sheet string) {
	if s.jobs == nil || s.cfg.SpoolDir == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "queued imports are not enabled")
		return
	}

	path, err := s.spool(file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	job, err := jobs.NewImportJob(jobs.ImportRequest{
		Kind:        collection,
		SourcePath:  path,
		SourceName:  filepath.Base(file.Name),
		CleanupPath: path,
		Policy:      policy,
		Sheet:       sheet,
		RequestedBy: caller(r).Name(),
	})
	if err != nil {
		_ = os.Remove(path)
		s.writeServiceError(w, r, err)
		return
	}
	queued, err := s.jobs.Enqueue(job)
	if err != nil {
		_ = os.Remove(path)
		s.writeServiceError(w, r, err)
		return
	}
	if queued.ID != job.ID {
		_ = os.Remove(path)
	}

	s.logger.Info("import queued", "job", queued.ID, "kind", collection, "source", file.Name)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "jobId": queued.ID, "state": queued.State})
}

func (s *Server) spool(file *upload) (string, error) {
	if err := os.MkdirAll(s.cfg.SpoolDir, 0o755); err != nil {
		return "", fmt.Errorf("api: failed to create spool dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	if ext != ".csv" {
		ext = ".xlsx"
	}
	f, err := os.CreateTemp(s.cfg.SpoolDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("api: failed to spool upload: %w", err)
	}
	if _, err := f.Write(file.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("api: failed to spool upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("api: failed to spool upload: %w", err)
	}
	return f.Name(), nil
}

func (s *Server) exportAssets(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.svc.ExportAssets(r.Context())
	s.writeWorkbook(w, r, assetsWorkbookName, sheets, err)
}

func (s *Server) exportCalibration(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.svc.ExportCalibration(r.Context(), s.baseURL(r))
	s.writeWorkbook(w, r, calibrationWorkbookName, sheets, err)
}

func (s *Server) exportReports(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.svc.ExportReports(r.Context(), s.now(), s.baseURL(r))
	s.writeWorkbook(w, r, reportsWorkbookName, sheets, err)
}

// writeWorkbook renders sheets fully before sending any header, so a failed
// export still gets a JSON error.
func (s *Server) writeWorkbook(w http.ResponseWriter, r *http.Request, name string, sheets []reconcile.OutputSheet, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := reconcile.WriteXLSX(&buf, sheets); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeDownload(w, name, reconcile.XLSXContentType, buf.Bytes())
}

func (s *Server) exportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.ExportBackup(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeDownload(w, backupName, "application/json; charset=utf-8", data)
}

// restoreBackup accepts the document either as the "json" multipart field
// or as a raw JSON body.
func (s *Server) restoreBackup(w http.ResponseWriter, r *http.Request) {
	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, err := s.formFile(w, r, "json")
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		data = file.Data
	} else {
		var raw bytes.Buffer
		if _, err := raw.ReadFrom(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		data = raw.Bytes()
	}

	stats, err := s.svc.RestoreBackup(r.Context(), data, caller(r).Name())
	if err != nil {
		if errors.Is(err, registry.ErrCorruptDocument) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "assets": stats.Assets, "calibration": stats.Calibration})
}

func writeDownload(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
