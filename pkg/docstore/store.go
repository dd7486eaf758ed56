// Package docstore persists the registry document. Every backend loads the
// whole document, normalizes it, and replaces it atomically on save; saves
// against one store are totally ordered.
package docstore

import (
	"context"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Store loads and saves the registry document.
type Store interface {
	// Load reads the persisted document. Missing storage yields a fresh
	// document; malformed bytes fail with registry.ErrCorruptDocument.
	Load(ctx context.Context) (*registry.Document, error)

	// Save replaces the persisted document. Concurrent calls are serialized.
	Save(ctx context.Context, doc *registry.Document) error

	// Raw returns the persisted bytes exactly as stored, for backups.
	Raw(ctx context.Context) ([]byte, error)
}

// Revision describes one snapshot kept by a store with history.
type Revision struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// Historian is implemented by stores that keep previous document versions.
type Historian interface {
	ListRevisions(ctx context.Context) ([]Revision, error)
	Rollback(ctx context.Context, version string) (*registry.Document, error)
}
