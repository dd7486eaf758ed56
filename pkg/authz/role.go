package authz

import "context"

// Access is the minimum caller class a route requires.
type Access int

const (
	// AccessPublic routes need no identity.
	AccessPublic Access = iota
	// AccessUser routes need an identified caller.
	AccessUser
	// AccessPrivileged routes need an administrator.
	AccessPrivileged
)

// ResourceMapping maps an HTTP request to a registry resource and verb for authorization.
type ResourceMapping struct {
	Resource string
	Verb     string
}

// DefaultPolicy lists the routes open to more than administrators. Any
// mapping not listed requires privilege.
var DefaultPolicy = map[ResourceMapping]Access{
	{ResourceMeta, VerbGet}:         AccessPublic,
	{ResourceAssets, VerbGet}:       AccessPublic,
	{ResourceAttachments, VerbGet}:  AccessPublic,
	{ResourceAssets, VerbList}:      AccessUser,
	{ResourceRepairs, VerbUpdate}:   AccessUser,
	{ResourceCalibration, VerbList}: AccessUser,
	{ResourceReports, VerbGet}:      AccessUser,
	{ResourceSession, VerbGet}:      AccessUser,
}

// RoleAuthorizer grants access from a static policy.
type RoleAuthorizer struct {
	policy map[ResourceMapping]Access
}

// NewRoleAuthorizer creates a RoleAuthorizer. A nil policy uses DefaultPolicy.
func NewRoleAuthorizer(policy map[ResourceMapping]Access) *RoleAuthorizer {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &RoleAuthorizer{policy: policy}
}

// Required returns the access level of a resource and verb.
func (a *RoleAuthorizer) Required(resource, verb string) Access {
	if access, ok := a.policy[ResourceMapping{Resource: resource, Verb: verb}]; ok {
		return access
	}
	return AccessPrivileged
}

// Authorize checks the caller class against the policy.
func (a *RoleAuthorizer) Authorize(_ context.Context, req AuthzRequest) (bool, error) {
	switch a.Required(req.Resource, req.Verb) {
	case AccessPublic:
		return true, nil
	case AccessUser:
		return req.Privileged || !isAnonymous(req.User), nil
	default:
		return req.Privileged, nil
	}
}
