package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps attachments under a directory, one sub-directory per
// kind.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a LocalStorage rooted at dir.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("attachments: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("attachments: failed to resolve %s: %w", dir, err)
	}
	return &LocalStorage{root: abs}, nil
}

// Put writes the content to a temporary file and renames it into place.
func (s *LocalStorage) Put(_ context.Context, kind Kind, name string, r io.Reader, _ int64, _ string) (string, error) {
	if !validKind(kind) || !validName(name) {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidRef, kind, name)
	}
	dir := filepath.Join(s.root, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("attachments: failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("attachments: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("attachments: failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("attachments: failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("attachments: failed to store %s: %w", name, err)
	}
	return Ref(kind, name), nil
}

// Open opens the file behind ref.
func (s *LocalStorage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return f, err
}

// Delete removes the file behind ref.
func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("attachments: failed to delete %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStorage) path(ref string) (string, error) {
	kind, name, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, string(kind), name), nil
}
