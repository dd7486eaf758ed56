package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ListEventsHandler handles GET /api/audit
// Query params: actor, resource, outcome, since (RFC 3339), pageSize, pageToken
func ListEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Actor:    q.Get("actor"),
			Resource: q.Get("resource"),
			Outcome:  q.Get("outcome"),
		}
		if since := q.Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", err))
				return
			}
			filter.Since = t
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := store.List(filter, pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]eventResponse, len(records))
		for i, rec := range records {
			events[i] = eventToResponse(rec)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// GetEventHandler handles GET /api/audit/{eventId}
func GetEventHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventId")
		if eventID == "" {
			writeError(w, http.StatusBadRequest, "missing event ID")
			return
		}

		record, err := store.Get(eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get audit event: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("audit event %q not found", eventID))
			return
		}

		writeJSON(w, http.StatusOK, eventToResponse(*record))
	}
}

type eventResponse struct {
	ID          string         `json:"id"`
	RequestID   string         `json:"requestId,omitempty"`
	Actor       string         `json:"actor"`
	Privileged  bool           `json:"privileged"`
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Resource    string         `json:"resource,omitempty"`
	Action      string         `json:"action,omitempty"`
	ResourceIDs []string       `json:"resourceIds,omitempty"`
	Outcome     string         `json:"outcome"`
	StatusCode  int            `json:"statusCode,omitempty"`
	DurationMs  int64          `json:"durationMs"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

func eventToResponse(rec Event) eventResponse {
	return eventResponse{
		ID:          rec.ID,
		RequestID:   rec.RequestID,
		Actor:       rec.Actor,
		Privileged:  rec.Privileged,
		Method:      rec.Method,
		Path:        rec.Path,
		Resource:    rec.Resource,
		Action:      rec.Action,
		ResourceIDs: []string(rec.ResourceIDs),
		Outcome:     rec.Outcome,
		StatusCode:  rec.StatusCode,
		DurationMs:  rec.DurationMs,
		Metadata:    map[string]any(rec.Metadata),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
