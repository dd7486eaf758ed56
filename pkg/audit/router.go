package audit

import (
	"github.com/go-chi/chi/v5"

	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
)

// Router creates a chi.Router for the audit API, mounted at /api/audit.
// When authorizer is non-nil, endpoints require audit:list and audit:get.
func Router(store *Store, authorizer authz.Authorizer) chi.Router {
	r := chi.NewRouter()

	listHandler := ListEventsHandler(store)
	getHandler := GetEventHandler(store)

	if authorizer != nil {
		r.Get("/", authz.RequirePermission(authorizer, authz.ResourceAudit, authz.VerbList)(listHandler).ServeHTTP)
		r.Get("/{eventId}", authz.RequirePermission(authorizer, authz.ResourceAudit, authz.VerbGet)(getHandler).ServeHTTP)
	} else {
		r.Get("/", listHandler)
		r.Get("/{eventId}", getHandler)
	}

	return r
}
