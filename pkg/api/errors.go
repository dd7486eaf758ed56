package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Kitoverdie1/uph-mem-system/pkg/attachments"
	"github.com/Kitoverdie1/uph-mem-system/pkg/maintenance"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
	"github.com/Kitoverdie1/uph-mem-system/pkg/sequence"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	From    maintenance.State `json:"from,omitempty"`
	To      maintenance.State `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps a registry error onto a status code. Unexpected
// errors are logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var transition *maintenance.TransitionError
	if errors.As(err, &transition) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   transition.Code,
			Message: transition.Message,
			From:    transition.From,
			To:      transition.To,
		})
		return
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, attachments.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, registry.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "duplicate_code", err.Error())
	case errors.Is(err, registry.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, registry.ErrInvalidInput),
		errors.Is(err, registry.ErrUnreadableSource),
		errors.Is(err, sequence.ErrInvalidKind),
		errors.Is(err, attachments.ErrInvalidRef):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
