// Package inbox watches drop folders for spreadsheets and queues an import
// job for each one. Files dropped into assets/ import into the asset
// register, files dropped into calibration/ into the calibration plan.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/Kitoverdie1/uph-mem-system/pkg/jobs"
)

// Drop folder names, which double as the job kind.
const (
	KindAssets      = "assets"
	KindCalibration = "calibration"
)

// queuedDir keeps files that have been handed to the job queue.
const queuedDir = ".queued"

// Enqueuer accepts import jobs. jobs.JobStore satisfies it.
type Enqueuer interface {
	Enqueue(job *jobs.ImportJob) (*jobs.ImportJob, error)
}

// Watcher queues spreadsheets dropped into the inbox folders.
type Watcher struct {
	cfg    Config
	queue  Enqueuer
	logger *slog.Logger

	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
}

// New creates a Watcher. Call Run to start it.
func New(cfg Config, queue Enqueuer, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("inbox: failed to create watcher: %w", err)
	}
	return &Watcher{
		cfg:       cfg,
		queue:     queue,
		logger:    logger,
		fsWatcher: fsw,
		pending:   make(map[string]time.Time),
	}, nil
}

// Run creates the drop folders, queues files already in them and then
// watches for new ones until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsWatcher.Close() }()

	for _, kind := range []string{KindAssets, KindCalibration} {
		dir := filepath.Join(w.cfg.Dir, kind)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("inbox: failed to create %s: %w", dir, err)
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("inbox: failed to watch %s: %w", dir, err)
		}
		w.scan(dir)
	}
	w.logger.Info("inbox watching", "dir", w.cfg.Dir, "debounce", w.cfg.Debounce)

	tick := max(w.cfg.Debounce/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox stopped")
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isSpreadsheet(event.Name) {
				continue
			}
			w.pending[event.Name] = time.Now()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", "error", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

// scan marks files already present in dir as pending.
func (w *Watcher) scan(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("inbox: failed to list folder", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.Type().IsRegular() && isSpreadsheet(path) {
			w.pending[path] = time.Time{}
		}
	}
}

// flush queues every file that has been quiet for the debounce period.
func (w *Watcher) flush(now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)
		if err := w.enqueue(path); err != nil {
			w.logger.Error("inbox: failed to queue import", "file", path, "error", err)
		}
	}
}

// enqueue moves the file out of the drop folder and queues an import of it.
// A file whose content is already queued is dropped.
func (w *Watcher) enqueue(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	kind := filepath.Base(filepath.Dir(path))

	target := filepath.Join(w.cfg.Dir, queuedDir, kind, uuid.NewString()[:8], filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create queued folder: %w", err)
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("move to queued folder: %w", err)
	}

	job, err := jobs.NewImportJob(jobs.ImportRequest{
		Kind:        kind,
		SourcePath:  target,
		CleanupPath: filepath.Dir(target),
		Policy:      w.cfg.Policy,
		RequestedBy: "inbox",
	})
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(target))
		return err
	}
	queued, err := w.queue.Enqueue(job)
	if err != nil {
		return err
	}
	if queued.ID != job.ID {
		_ = os.RemoveAll(filepath.Dir(target))
		w.logger.Info("inbox file already queued", "file", filepath.Base(path), "job", queued.ID)
		return nil
	}
	w.logger.Info("inbox import queued", "file", filepath.Base(path), "kind", kind, "job", queued.ID)
	return nil
}

// isSpreadsheet accepts .xlsx and .csv files, skipping hidden files and the
// lock files spreadsheet editors leave next to open workbooks.
func isSpreadsheet(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}
