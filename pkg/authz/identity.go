package authz

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/maintenance"
)

// AnonymousUser is the identity of callers that presented none.
const AnonymousUser = "anonymous"

// identityCtxKey is an unexported type used as the context key for Identity.
type identityCtxKey struct{}

// Identity represents the authenticated user making a request.
type Identity struct {
	User        string
	DisplayName string
	Groups      []string
	Privileged  bool
}

// Anonymous reports whether the caller presented no identity.
func (id Identity) Anonymous() bool {
	return isAnonymous(id.User)
}

// Actor returns the identity as a repair workflow actor.
func (id Identity) Actor() maintenance.Actor {
	user := id.User
	if id.Anonymous() {
		user = ""
	}
	return maintenance.Actor{Identity: user, DisplayName: id.DisplayName, Privileged: id.Privileged}
}

// Name is the display name, or the user name when there is none.
func (id Identity) Name() string {
	if n := id.Actor().Name(); n != "" {
		return n
	}
	return AnonymousUser
}

func isAnonymous(user string) bool {
	return user == "" || user == AnonymousUser
}

// WithIdentity returns a new context with the given Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns the zero value and false if no identity is set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// HeaderIdentityMiddleware returns HTTP middleware that extracts identity
// from X-Remote-User, X-Remote-Name and X-Remote-Group headers and stores it
// in the request context. If X-Remote-User is missing, the user defaults to
// "anonymous". X-Remote-Group is comma-separated; membership in any of
// privilegedGroups makes the caller privileged. X-Remote-Name may be
// percent-encoded.
func HeaderIdentityMiddleware(privilegedGroups []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get("X-Remote-User"))
			if user == "" {
				user = AnonymousUser
			}

			var groups []string
			groupHeader := strings.TrimSpace(r.Header.Get("X-Remote-Group"))
			if groupHeader != "" {
				for _, g := range strings.Split(groupHeader, ",") {
					g = strings.TrimSpace(g)
					if g != "" {
						groups = append(groups, g)
					}
				}
			}

			name := strings.TrimSpace(r.Header.Get("X-Remote-Name"))
			if decoded, err := url.PathUnescape(name); err == nil {
				name = decoded
			}

			id := Identity{
				User:        user,
				DisplayName: name,
				Groups:      groups,
				Privileged:  user != AnonymousUser && hasAny(groups, privilegedGroups),
			}
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAny(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}
