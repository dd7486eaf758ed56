package authz

import (
	"net/http"
	"strings"
)

// UnknownMapping is returned when no known pattern matches the request.
// Callers should deny requests with this mapping by default.
var UnknownMapping = ResourceMapping{Resource: "", Verb: ""}

// MapRequest maps an HTTP method and URL path to a ResourceMapping.
func MapRequest(method, path string) ResourceMapping {
	// Normalize the path: trim trailing slash.
	path = strings.TrimRight(path, "/")

	// Stored attachments are served outside /api.
	if !strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet && strings.HasPrefix(path, "/assets/") {
			return ResourceMapping{Resource: ResourceAttachments, Verb: VerbGet}
		}
		return UnknownMapping
	}

	// Repair decisions: POST *:confirm, POST *:reject
	if method == http.MethodPost && (strings.HasSuffix(path, ":confirm") || strings.HasSuffix(path, ":reject")) {
		return ResourceMapping{Resource: ResourceRepairs, Verb: VerbApprove}
	}

	// Job cancellation: POST *:cancel
	if method == http.MethodPost && strings.HasSuffix(path, ":cancel") {
		return ResourceMapping{Resource: ResourceJobs, Verb: VerbUpdate}
	}

	switch {
	case path == "/api/meta":
		return ResourceMapping{Resource: ResourceMeta, Verb: VerbGet}
	case path == "/api/me":
		if method == http.MethodGet {
			return ResourceMapping{Resource: ResourceSession, Verb: VerbGet}
		}
		return UnknownMapping
	case path == "/api/next-code":
		return ResourceMapping{Resource: ResourceAssets, Verb: VerbCreate}
	case path == "/api/import/excel", path == "/api/calibration/import":
		return ResourceMapping{Resource: ResourceImports, Verb: VerbCreate}
	case path == "/api/export/excel", path == "/api/calibration/export/excel", path == "/api/reports/export/excel":
		return ResourceMapping{Resource: ResourceExports, Verb: VerbGet}
	case path == "/api/export/db":
		return ResourceMapping{Resource: ResourceBackups, Verb: VerbGet}
	case path == "/api/import/db":
		return ResourceMapping{Resource: ResourceBackups, Verb: VerbCreate}
	case path == "/api/reports/summary":
		return ResourceMapping{Resource: ResourceReports, Verb: VerbGet}
	case strings.HasPrefix(path, "/api/assets/by-code/"):
		return mapByCodeRoute(method)
	case path == "/api/assets" || strings.HasPrefix(path, "/api/assets/"):
		return mapCollectionRoute(ResourceAssets, method, path == "/api/assets")
	case path == "/api/calibration" || strings.HasPrefix(path, "/api/calibration/"):
		return mapCollectionRoute(ResourceCalibration, method, path == "/api/calibration")
	case path == "/api/jobs" || strings.HasPrefix(path, "/api/jobs/"):
		return mapReadOnlyRoute(ResourceJobs, method)
	case path == "/api/audit" || strings.HasPrefix(path, "/api/audit/"):
		return mapReadOnlyRoute(ResourceAudit, method)
	case path == "/api/history":
		return mapReadOnlyRoute(ResourceHistory, method)
	}

	// Default: unknown pattern.
	return UnknownMapping
}

// mapByCodeRoute handles /api/assets/by-code/{code}: lookups are public and
// updates go through the repair workflow.
func mapByCodeRoute(method string) ResourceMapping {
	switch method {
	case http.MethodGet:
		return ResourceMapping{Resource: ResourceAssets, Verb: VerbGet}
	case http.MethodPut:
		return ResourceMapping{Resource: ResourceRepairs, Verb: VerbUpdate}
	}
	return UnknownMapping
}

// mapCollectionRoute handles a record collection and its item routes.
func mapCollectionRoute(resource, method string, collection bool) ResourceMapping {
	switch method {
	case http.MethodGet:
		if collection {
			return ResourceMapping{Resource: resource, Verb: VerbList}
		}
		return ResourceMapping{Resource: resource, Verb: VerbGet}
	case http.MethodPost:
		if collection {
			return ResourceMapping{Resource: resource, Verb: VerbCreate}
		}
		return ResourceMapping{Resource: resource, Verb: VerbUpdate}
	case http.MethodPut:
		return ResourceMapping{Resource: resource, Verb: VerbUpdate}
	case http.MethodDelete:
		return ResourceMapping{Resource: resource, Verb: VerbDelete}
	}
	return UnknownMapping
}

func mapReadOnlyRoute(resource, method string) ResourceMapping {
	if method == http.MethodGet {
		return ResourceMapping{Resource: resource, Verb: VerbList}
	}
	return UnknownMapping
}
