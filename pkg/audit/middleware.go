package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// AuditMiddleware records an Event for every mutating API request after
// the handler completes. It must run after the identity middleware and
// before authorization so that denials are captured too.
func AuditMiddleware(store *Store, cfg *AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil || !isAuditable(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			id, ok := authz.IdentityFromContext(ctx)
			if !ok {
				id = authz.Identity{User: authz.AnonymousUser}
			}
			requestID := middleware.GetReqID(ctx)

			event := &Event{
				ID:          uuid.New().String(),
				RequestID:   requestID,
				Actor:       id.User,
				Privileged:  id.Privileged,
				Method:      r.Method,
				Path:        r.URL.Path,
				Resource:    resourceOf(r.Method, r.URL.Path),
				Action:      extractAction(r.Method, r.URL.Path),
				ResourceIDs: JSONStringSlice(extractResourceIDs(r.URL.Path)),
				Outcome:     outcome,
				StatusCode:  capture.statusCode,
				DurationMs:  time.Since(start).Milliseconds(),
				CreatedAt:   start,
				Metadata: JSONAny{
					"name":   id.Name(),
					"groups": id.Groups,
				},
			}

			// Best effort: a failed audit write never fails the request.
			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event", "error", err, "requestID", requestID)
			}
		})
	}
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return "denied"
	default:
		return "failure"
	}
}
