package audit

import (
	"net/http"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
)

// resourceOf returns the authorization resource a path belongs to.
func resourceOf(method, path string) string {
	return authz.MapRequest(method, path).Resource
}

// extractResourceIDs returns the record ids, codes or job ids named in path.
//
//	/api/assets/{id}                   -> [id]
//	/api/assets/by-code/{code}:confirm -> [code]
//	/api/calibration/{id}/file         -> [id]
//	/api/jobs/{id}:cancel              -> [id]
func extractResourceIDs(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" {
		return nil
	}

	var id string
	switch parts[1] {
	case "assets":
		if parts[2] == "by-code" {
			if len(parts) > 3 {
				id = parts[3]
			}
		} else {
			id = parts[2]
		}
	case "calibration":
		if parts[2] != "import" && parts[2] != "export" {
			id = parts[2]
		}
	case "jobs":
		id = parts[2]
	}

	if i := strings.Index(id, ":"); i > 0 {
		id = id[:i]
	}
	if id == "" {
		return nil
	}
	return []string{id}
}

// extractAction names what a mutating request did.
func extractAction(method, path string) string {
	switch {
	case strings.HasSuffix(path, ":confirm"):
		return "confirm-repair"
	case strings.HasSuffix(path, ":reject"):
		return "reject-repair"
	case strings.HasSuffix(path, ":cancel"):
		return "cancel-job"
	case path == "/api/import/excel":
		return "import-assets"
	case path == "/api/calibration/import":
		return "import-calibration"
	case path == "/api/import/db":
		return "restore-backup"
	case strings.HasSuffix(path, "/image"):
		return "set-image"
	case strings.HasSuffix(path, "/file"):
		if method == http.MethodDelete {
			return "clear-file"
		}
		return "attach-file"
	case strings.HasPrefix(path, "/api/assets/by-code/"):
		return "update-by-code"
	}

	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// isAuditable reports whether the request should be recorded. Only
// mutating calls to the API are audited.
func isAuditable(method, path string) bool {
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
