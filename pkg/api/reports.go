package api

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/Kitoverdie1/uph-mem-system/pkg/history"
	"github.com/Kitoverdie1/uph-mem-system/pkg/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// summaryResponse flattens the summary next to the ok flag.
type summaryResponse struct {
	OK bool `json:"ok"`
	*service.Summary
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), s.now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{OK: true, Summary: sum})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "document history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	commits, err := s.history.Log(limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if commits == nil {
		commits = []history.Commit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "commits": commits})
}

// serveAttachment streams a stored image or calibration certificate.
func (s *Server) serveAttachment(w http.ResponseWriter, r *http.Request) {
	rc, err := s.files.Open(r.Context(), r.URL.Path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(r.URL.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("failed to stream attachment", "path", r.URL.Path, "error", err)
	}
}
