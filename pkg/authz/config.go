package authz

// AuthzMode selects the authorization backend.
type AuthzMode string

const (
	// AuthzModeNone disables authorization checks (dev only).
	AuthzModeNone AuthzMode = "none"
	// AuthzModeRole grants access by the caller's role.
	AuthzModeRole AuthzMode = "role"
)

// IdentityMode selects where caller identities come from.
type IdentityMode string

const (
	// IdentityModeHeader trusts X-Remote-* headers set by a proxy.
	IdentityModeHeader IdentityMode = "header"
	// IdentityModeJWT reads a bearer token.
	IdentityModeJWT IdentityMode = "jwt"
)

// NewAuthorizer returns the authorizer for mode. Unknown modes use roles.
func NewAuthorizer(mode AuthzMode) Authorizer {
	if mode == AuthzModeNone {
		return &NoopAuthorizer{}
	}
	return NewRoleAuthorizer(nil)
}
