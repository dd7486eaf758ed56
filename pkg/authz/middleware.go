package authz

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// RequirePermission returns middleware that enforces a specific resource/verb
// permission check for the identity set by an identity middleware.
func RequirePermission(authorizer Authorizer, resource, verb string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if check(w, r, authorizer, ResourceMapping{Resource: resource, Verb: verb}) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// AuthzMiddleware returns middleware that auto-maps the HTTP method and URL path
// to a (resource, verb) pair and performs the authorization check. This can be
// mounted as global middleware on all routes.
func AuthzMiddleware(authorizer Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mapping := MapRequest(r.Method, r.URL.Path)

			// If we cannot map the request, deny by default.
			if mapping == UnknownMapping {
				writeError(w, http.StatusForbidden, "forbidden", "unknown endpoint, access denied")
				return
			}

			if check(w, r, authorizer, mapping) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// check writes 401 for anonymous callers and 403 for identified ones when
// the authorizer refuses. It reports whether the request may proceed.
func check(w http.ResponseWriter, r *http.Request, authorizer Authorizer, mapping ResourceMapping) bool {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		id = Identity{User: AnonymousUser}
	}

	req := AuthzRequest{
		User:       id.User,
		Groups:     id.Groups,
		Privileged: id.Privileged,
		Resource:   mapping.Resource,
		Verb:       mapping.Verb,
	}

	allowed, err := authorizer.Authorize(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return false
	}
	if allowed {
		return true
	}

	if id.Anonymous() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
		return false
	}
	writeError(w, http.StatusForbidden, "forbidden",
		fmt.Sprintf("insufficient permissions for %s/%s", mapping.Resource, mapping.Verb))
	return false
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
