package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
)

func TestListEventsHandler(t *testing.T) {
	store := newTestStore(t)
	appendEvent(t, store, "alice", "assets", "success", time.Now().Add(-time.Minute))
	appendEvent(t, store, "bob", "calibration", "failure", time.Now())
	r := Router(store, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?actor=bob", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Events    []eventResponse `json:"events"`
		TotalSize int             `json:"totalSize"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalSize != 1 || len(body.Events) != 1 || body.Events[0].Resource != "calibration" {
		t.Errorf("unexpected body %+v", body)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad since, got %d", rec.Code)
	}
}

func TestGetEventHandler(t *testing.T) {
	store := newTestStore(t)
	ev := appendEvent(t, store, "alice", "assets", "success", time.Now())
	r := Router(store, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+ev.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got eventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != ev.ID || got.Actor != "alice" {
		t.Errorf("unexpected event %+v", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_RequiresPrivilege(t *testing.T) {
	r := Router(newTestStore(t), authz.NewRoleAuthorizer(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(authz.WithIdentity(req.Context(), authz.Identity{User: "alice"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-privileged user, got %d", rec.Code)
	}
}
