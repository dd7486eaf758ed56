package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/Kitoverdie1/uph-mem-system/pkg/attachments"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

func (s *Server) listCalibration(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.ListCalibration(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := plan.Items
	if items == nil {
		items = []*registry.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "meta": plan.Meta, "items": items})
}

func (s *Server) createCalibration(w http.ResponseWriter, r *http.Request) {
	fields, err := s.decodeRecord(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	item, err := s.svc.CreateCalibration(r.Context(), fields, caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "item": item})
}

func (s *Server) updateCalibration(w http.ResponseWriter, r *http.Request) {
	fields, err := s.decodeRecord(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	item, err := s.svc.UpdateCalibration(r.Context(), pathParam(r, "id"), fields, caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": item})
}

func (s *Server) deleteCalibration(w http.ResponseWriter, r *http.Request) {
	ref, err := s.svc.DeleteCalibration(r.Context(), pathParam(r, "id"), caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.discard(r.Context(), ref)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// attachCalibrationFile stores a result certificate under a fresh name and
// deletes the one it replaces.
func (s *Server) attachCalibrationFile(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	file, err := s.formFile(w, r, "file")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ref, err := s.files.Put(r.Context(), attachments.KindCalibration, attachments.CalibrationFileName(id, file.Name),
		bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	previous, err := s.svc.AttachCalibrationFile(r.Context(), id, ref, file.Name, caller(r).Name())
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.discard(r.Context(), ref)
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.discard(r.Context(), previous)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": ref, "name": file.Name})
}

func (s *Server) clearCalibrationFile(w http.ResponseWriter, r *http.Request) {
	previous, err := s.svc.ClearCalibrationFile(r.Context(), pathParam(r, "id"), caller(r).Name())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.discard(r.Context(), previous)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
