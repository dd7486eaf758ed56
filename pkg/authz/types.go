// Package authz resolves who is calling the registry API and decides which
// routes they may use. Identities come from trusted proxy headers or from
// bearer tokens; access is granted by role.
package authz

import "context"

// Resource names for route mapping.
const (
	ResourceMeta        = "meta"
	ResourceAssets      = "assets"
	ResourceRepairs     = "repairs"
	ResourceCalibration = "calibration"
	ResourceImports     = "imports"
	ResourceExports     = "exports"
	ResourceReports     = "reports"
	ResourceBackups     = "backups"
	ResourceJobs        = "jobs"
	ResourceAudit       = "audit"
	ResourceHistory     = "history"
	ResourceAttachments = "attachments"
	ResourceSession     = "session"
)

// Verb names for route mapping.
const (
	VerbGet     = "get"
	VerbList    = "list"
	VerbCreate  = "create"
	VerbUpdate  = "update"
	VerbDelete  = "delete"
	VerbApprove = "approve"
)

// AuthzRequest represents an authorization check.
type AuthzRequest struct {
	User       string
	Groups     []string
	Privileged bool
	Resource   string
	Verb       string
}

// Authorizer checks whether a user is authorized to perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthzRequest) (bool, error)
}
