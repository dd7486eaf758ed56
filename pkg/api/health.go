package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// readyTimeout bounds all readiness checks of one request.
const readyTimeout = 5 * time.Second

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.now().Sub(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler runs every registered check. Any failure answers 503.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	allReady := true
	checks := make(map[string]map[string]string, len(names))
	for _, name := range names {
		status := map[string]string{"status": "up"}
		if err := s.checks[name](ctx); err != nil {
			status["status"] = "down"
			status["error"] = err.Error()
			allReady = false
		}
		checks[name] = status
	}

	code := http.StatusOK
	overall := "ready"
	if !allReady {
		code = http.StatusServiceUnavailable
		overall = "not_ready"
	}
	writeJSON(w, code, map[string]any{"status": overall, "checks": checks})
}
