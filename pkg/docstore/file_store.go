package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

const (
	// maxDocumentSize is the largest document the file store will read (64 MiB).
	maxDocumentSize = 64 << 20

	// defaultHistoryLimit is the number of snapshots kept in .history/.
	defaultHistoryLimit = 20

	historyDirName = ".history"
	snapshotExt    = ".json"
)

// ErrDocumentTooLarge is returned when the document file exceeds maxDocumentSize.
var ErrDocumentTooLarge = errors.New("document exceeds maximum allowed size (64 MiB)")

// ErrPathTraversal is returned when the document path contains "..".
var ErrPathTraversal = errors.New("document path contains path traversal")

// ErrRevisionNotFound is returned when a rollback target is not in history.
var ErrRevisionNotFound = errors.New("revision not found")

// FileStore keeps the registry as a JSON file. Writes go to a temp file in
// the same directory which is synced and renamed over the target, so readers
// only ever see a complete document.
type FileStore struct {
	path         string
	mu           sync.Mutex
	historyLimit int
	logger       *slog.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithHistoryLimit sets how many previous versions are kept. Zero disables history.
func WithHistoryLimit(n int) FileStoreOption {
	return func(s *FileStore) { s.historyLimit = n }
}

// WithFileLogger sets the logger used for best-effort history failures.
func WithFileLogger(logger *slog.Logger) FileStoreOption {
	return func(s *FileStore) { s.logger = logger }
}

// NewFileStore creates a FileStore for path. The file does not need to exist.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	s := &FileStore{path: path, historyLimit: defaultHistoryLimit}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func validatePath(path string) error {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return ErrPathTraversal
		}
	}
	return nil
}

// Path returns the document file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the document. It does not wait for in-flight saves;
// the rename in Save makes every read see either the old or the new file.
func (s *FileStore) Load(ctx context.Context) (*registry.Document, error) {
	data, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := registry.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("document store: failed to parse %s: %w", s.path, err)
	}
	return doc, nil
}

// Raw returns the file content, or nothing if the file does not exist yet.
func (s *FileStore) Raw(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("document store: failed to read %s: %w", s.path, err)
	}
	if int64(len(data)) > maxDocumentSize {
		return nil, fmt.Errorf("document store: %s: %w", s.path, ErrDocumentTooLarge)
	}
	return data, nil
}

// Save encodes doc and atomically replaces the file. The previous content is
// snapshotted to .history/ first when history is enabled.
func (s *FileStore) Save(_ context.Context, doc *registry.Document) error {
	data, err := registry.Encode(doc)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if int64(len(data)) > maxDocumentSize {
		return fmt.Errorf("document store: encoded document: %w", ErrDocumentTooLarge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.historyLimit > 0 {
		if current, err := os.ReadFile(s.path); err == nil && len(current) > 0 {
			if err := s.snapshot(current); err != nil {
				s.logger.Warn("document history snapshot failed", "path", s.path, "error", err)
			}
		}
	}

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	if s.historyLimit > 0 {
		if err := s.pruneHistory(); err != nil {
			s.logger.Warn("document history prune failed", "path", s.path, "error", err)
		}
	}
	return nil
}

// writeAtomic must be called with s.mu held.
func (s *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("document store: failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".db-*.json.tmp")
	if err != nil {
		return fmt.Errorf("document store: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("document store: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("document store: failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("document store: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("document store: failed to rename temp file: %w", err)
	}
	tmpName = ""
	return nil
}

// ListRevisions returns the kept snapshots, newest first.
func (s *FileStore) ListRevisions(_ context.Context) ([]Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.historyDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Revision{}, nil
		}
		return nil, fmt.Errorf("document store: failed to read history dir: %w", err)
	}

	revisions := make([]Revision, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		rev, err := parseSnapshotName(e)
		if err != nil {
			continue
		}
		revisions = append(revisions, rev)
	}

	sort.SliceStable(revisions, func(i, j int) bool {
		return revisions[i].Timestamp.After(revisions[j].Timestamp)
	})
	return revisions, nil
}

// Rollback restores the snapshot whose version starts with version and
// returns the restored document. The current content is snapshotted first,
// so a rollback can itself be rolled back.
func (s *FileStore) Rollback(ctx context.Context, version string) (*registry.Document, error) {
	if version == "" {
		return nil, ErrRevisionNotFound
	}
	short := version[:min(len(version), 8)]

	s.mu.Lock()
	entries, err := os.ReadDir(s.historyDir())
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRevisionNotFound
		}
		return nil, fmt.Errorf("document store: failed to read history dir: %w", err)
	}

	var snapshotPath string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		parts := strings.SplitN(strings.TrimSuffix(e.Name(), snapshotExt), "_", 2)
		if len(parts) == 2 && parts[1] == short {
			snapshotPath = filepath.Join(s.historyDir(), e.Name())
			break
		}
	}
	if snapshotPath == "" {
		s.mu.Unlock()
		return nil, ErrRevisionNotFound
	}

	data, err := os.ReadFile(snapshotPath)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("document store: failed to read revision: %w", err)
	}

	doc, err := registry.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("document store: revision %s is invalid: %w", short, err)
	}
	if err := s.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("document store: failed to save rolled-back document: %w", err)
	}
	return doc, nil
}

func (s *FileStore) historyDir() string {
	return filepath.Join(filepath.Dir(s.path), historyDirName)
}

// snapshot must be called with s.mu held.
func (s *FileStore) snapshot(data []byte) error {
	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	version := registry.Hash(data)
	name := fmt.Sprintf("%d_%s%s", time.Now().Unix(), version[:8], snapshotExt)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write history snapshot: %w", err)
	}
	return nil
}

// pruneHistory must be called with s.mu held.
func (s *FileStore) pruneHistory() error {
	dir := s.historyDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), snapshotExt) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.historyLimit {
		return nil
	}

	sort.Slice(names, func(i, j int) bool { return snapshotUnix(names[i]) < snapshotUnix(names[j]) })
	for _, name := range names[:len(names)-s.historyLimit] {
		_ = os.Remove(filepath.Join(dir, name))
	}
	return nil
}

func snapshotUnix(name string) int64 {
	ts, _ := strconv.ParseInt(strings.SplitN(name, "_", 2)[0], 10, 64)
	return ts
}

// parseSnapshotName reads {unix}_{version8}.json.
func parseSnapshotName(e os.DirEntry) (Revision, error) {
	parts := strings.SplitN(strings.TrimSuffix(e.Name(), snapshotExt), "_", 2)
	if len(parts) != 2 {
		return Revision{}, fmt.Errorf("unexpected snapshot name: %s", e.Name())
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Revision{}, fmt.Errorf("invalid timestamp in snapshot name: %s", e.Name())
	}
	info, err := e.Info()
	if err != nil {
		return Revision{}, fmt.Errorf("stat snapshot: %w", err)
	}
	return Revision{Version: parts[1], Timestamp: time.Unix(ts, 0), Size: info.Size()}, nil
}

var (
	_ Store     = (*FileStore)(nil)
	_ Historian = (*FileStore)(nil)
)
