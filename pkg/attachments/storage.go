// Package attachments stores asset images and calibration certificates
// outside the registry document. Records only hold a reference of the form
// /assets/{kind}/{name}.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind groups attachments by what they belong to.
type Kind string

const (
	KindImage       Kind = "images"
	KindCalibration Kind = "calibration_files"
)

// RefPrefix starts every attachment reference.
const RefPrefix = "/assets/"

var (
	// ErrInvalidRef is returned for references this package did not issue.
	ErrInvalidRef = errors.New("invalid attachment reference")
	// ErrNotFound is returned when a referenced attachment does not exist.
	ErrNotFound = errors.New("attachment not found")
)

// Storage persists attachment content.
type Storage interface {
	// Put stores content and returns its reference.
	Put(ctx context.Context, kind Kind, name string, r io.Reader, size int64, contentType string) (string, error)
	// Open returns the content behind ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes the content behind ref. Missing content is not an error.
	Delete(ctx context.Context, ref string) error
}

// Ref builds the reference for a stored object.
func Ref(kind Kind, name string) string {
	return RefPrefix + string(kind) + "/" + name
}

// ParseRef splits a reference into kind and object name.
func ParseRef(ref string) (Kind, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), RefPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	kind, name, ok := strings.Cut(rest, "/")
	if !ok || !validKind(Kind(kind)) || !validName(name) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return Kind(kind), name, nil
}

// ImageName is the object name for an asset image: the asset id with the
// upload's extension.
func ImageName(assetID, uploadName string) string {
	return assetID + extension(uploadName)
}

// CalibrationFileName is a fresh object name for a calibration certificate.
func CalibrationFileName(itemID, uploadName string) string {
	return itemID + "-" + uuid.NewString()[:8] + extension(uploadName)
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}

func validKind(k Kind) bool {
	return k == KindImage || k == KindCalibration
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && path.Base(name) == name
}
