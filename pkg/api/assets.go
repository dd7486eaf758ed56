package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/Kitoverdie1/uph-mem-system/pkg/attachments"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
	"github.com/Kitoverdie1/uph-mem-system/pkg/sequence"
)

func (s *Server) getMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := s.svc.Meta(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                       true,
		"meta":                     meta.Meta,
		"maintenanceStatusChoices": meta.MaintenanceStatusChoices,
	})
}

// userResponse describes the caller.
type userResponse struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Groups      []string `json:"groups"`
	Privileged  bool     `json:"privileged"`
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	groups := id.Groups
	if groups == nil {
		groups = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"user": userResponse{
			Username:    id.User,
			DisplayName: id.Name(),
			Groups:      groups,
			Privileged:  id.Privileged,
		},
	})
}

func (s *Server) nextCode(w http.ResponseWriter, r *http.Request) {
	kind, err := sequence.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	next, err := s.svc.NextCode(r.Context(), kind)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "kind": kind, "next": next})
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.svc.ListAssets(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if assets == nil {
		assets = []*registry.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "assets": assets})
}

func (s *Server) getAssetByCode(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.AssetByCode(r.Context(), pathParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "asset": asset})
}

func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	fields, err := s.decodeRecord(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	asset, err := s.svc.CreateAsset(r.Context(), fields, caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "asset": asset})
}

func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	fields, err := s.decodeRecord(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	asset, err := s.svc.UpdateAsset(r.Context(), pathParam(r, "id"), fields, caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "asset": asset})
}

func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.DeleteAsset(r.Context(), pathParam(r, "id"), caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.discard(r.Context(), removed.Text(registry.FieldImage))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) updateAssetByCode(w http.ResponseWriter, r *http.Request) {
	fields, err := s.decodeRecord(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	asset, err := s.svc.UpdateAssetByCode(r.Context(), pathParam(r, "code"), fields, caller(r).Actor())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "asset": asset})
}

func (s *Server) confirmRepair(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.ConfirmRepair(r.Context(), pathParam(r, "code"), caller(r).Actor())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "asset": asset})
}

// rejectRequest is the body of a repair rejection.
type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectRepair(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	asset, err := s.svc.RejectRepair(r.Context(), pathParam(r, "code"), caller(r).Actor(), req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "asset": asset})
}

// uploadImage stores the image and points the asset at it. The object is
// removed again when the asset does not exist, and a replaced image under a
// different name is deleted.
func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	file, err := s.formFile(w, r, "image")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ref, err := s.files.Put(r.Context(), attachments.KindImage, attachments.ImageName(id, file.Name),
		bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	previous, err := s.svc.SetAssetImage(r.Context(), id, ref, caller(r).Name())
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.discard(r.Context(), ref)
		}
		s.writeServiceError(w, r, err)
		return
	}
	if previous != ref {
		s.discard(r.Context(), previous)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "imagePath": ref})
}

// discard deletes a stored attachment. References this server did not issue,
// such as external image links, are left alone.
func (s *Server) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if _, _, err := attachments.ParseRef(ref); err != nil {
		return
	}
	if err := s.files.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete attachment", "ref", ref, "error", err)
	}
}
