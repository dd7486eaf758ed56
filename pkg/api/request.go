package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// upload is one file received in a multipart field.
type upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// caller returns the identity resolved by the identity middleware.
func caller(r *http.Request) authz.Identity {
	id, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		return authz.Identity{User: authz.AnonymousUser}
	}
	return id
}

// pathParam returns a decoded URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(raw)
}

// boolParam reads a form or query flag. Anything unparsable is false.
func boolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(name)))
	return err == nil && v
}

// decodeRecord reads a JSON object body into a record.
func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (*registry.Record, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: request body must be a JSON object", registry.ErrInvalidInput)
	}
	rec := registry.NewRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrInvalidInput, err)
	}
	return rec, nil
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", registry.ErrInvalidInput, err)
	}
	return nil
}

// formFile reads the named multipart field, bounded by the upload limit.
// Form values become available through r.FormValue afterwards.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: expected a multipart upload in field %q: %v", registry.ErrInvalidInput, field, err)
	}

	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, fmt.Errorf("%w: no file in field %q", registry.ErrInvalidInput, field)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// baseURL is the origin attachment links in exports point at.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}
