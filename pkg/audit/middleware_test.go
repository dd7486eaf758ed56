package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func serveAudited(t *testing.T, store *Store, cfg *AuditConfig, h http.Handler, req *http.Request) {
	t.Helper()
	rec := httptest.NewRecorder()
	AuditMiddleware(store, cfg, nil)(h).ServeHTTP(rec, req)
}

func countEvents(t *testing.T, store *Store) []Event {
	t.Helper()
	events, _, _, err := store.List(ListFilter{}, 100, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return events
}

func TestAuditMiddleware_RecordsMutation(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultAuditConfig()

	req := httptest.NewRequest(http.MethodPost, "/api/assets/by-code/EQ-7:confirm", nil)
	ctx := authz.WithIdentity(req.Context(), authz.Identity{
		User:        "admin",
		DisplayName: "Lab Admin",
		Groups:      []string{"admins"},
		Privileged:  true,
	})
	// RequestID middleware stores the id under its context key.
	var withID *http.Request
	middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		withID = r
	})).ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	serveAudited(t, store, cfg, statusHandler(http.StatusOK), withID)

	events := countEvents(t, store)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Actor != "admin" || !ev.Privileged {
		t.Errorf("actor = %q privileged = %v", ev.Actor, ev.Privileged)
	}
	if ev.Resource != "repairs" || ev.Action != "confirm-repair" {
		t.Errorf("resource/action = %q/%q", ev.Resource, ev.Action)
	}
	if len(ev.ResourceIDs) != 1 || ev.ResourceIDs[0] != "EQ-7" {
		t.Errorf("resource ids = %v", ev.ResourceIDs)
	}
	if ev.Outcome != "success" || ev.StatusCode != http.StatusOK {
		t.Errorf("outcome = %q status = %d", ev.Outcome, ev.StatusCode)
	}
	if ev.RequestID == "" {
		t.Error("expected request id")
	}
	if ev.Metadata["name"] != "Lab Admin" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
}

func TestAuditMiddleware_Skips(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *AuditConfig
		method string
		path   string
		status int
	}{
		{"GET not audited", DefaultAuditConfig(), http.MethodGet, "/api/assets", http.StatusOK},
		{"non api path", DefaultAuditConfig(), http.MethodPost, "/healthz", http.StatusOK},
		{"disabled", &AuditConfig{Enabled: false}, http.MethodPost, "/api/assets", http.StatusOK},
		{"nil config", nil, http.MethodPost, "/api/assets", http.StatusOK},
		{"denied without LogDenied", &AuditConfig{Enabled: true}, http.MethodPost, "/api/assets", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			serveAudited(t, store, tt.cfg, statusHandler(tt.status), httptest.NewRequest(tt.method, tt.path, nil))
			if n := len(countEvents(t, store)); n != 0 {
				t.Errorf("expected no events, got %d", n)
			}
		})
	}
}

func TestAuditMiddleware_AnonymousDenied(t *testing.T) {
	store := newTestStore(t)
	serveAudited(t, store, DefaultAuditConfig(), statusHandler(http.StatusUnauthorized),
		httptest.NewRequest(http.MethodDelete, "/api/assets/A-000001", nil))

	events := countEvents(t, store)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Actor != authz.AnonymousUser || events[0].Outcome != "denied" {
		t.Errorf("actor = %q outcome = %q", events[0].Actor, events[0].Outcome)
	}
}

func TestAuditMiddleware_NilStorePassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	AuditMiddleware(nil, DefaultAuditConfig(), nil)(statusHandler(http.StatusCreated)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assets", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
}

func TestResponseCapture_DoubleWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	capture := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	capture.WriteHeader(http.StatusCreated)
	capture.WriteHeader(http.StatusInternalServerError)

	if capture.statusCode != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, capture.statusCode)
	}
}

func TestOutcomeFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{201, "success"},
		{400, "failure"},
		{401, "denied"},
		{403, "denied"},
		{404, "failure"},
		{409, "failure"},
		{500, "failure"},
	}

	for _, tt := range tests {
		if got := outcomeFromStatus(tt.code); got != tt.want {
			t.Errorf("outcomeFromStatus(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
