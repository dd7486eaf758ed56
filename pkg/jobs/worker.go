package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Importer applies a spreadsheet file to the registry. It is satisfied by
// service.Service.
type Importer interface {
	ImportFile(ctx context.Context, collection, path, name, policy, sheet string) (reconcile.ImportResult, error)
}

// WorkerPool processes queued import jobs using a pool of goroutines.
type WorkerPool struct {
	store    *JobStore
	importer Importer
	cfg      *JobConfig
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, importer Importer, cfg *JobConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultJobConfig()
	}
	return &WorkerPool{
		store:    store,
		importer: importer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run spawns cfg.Concurrency polling workers plus a cleanup loop and blocks
// until ctx is cancelled and every worker has returned.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || !wp.cfg.Enabled {
		wp.logger.Info("job worker pool disabled")
		return
	}

	wp.logger.Info("job worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.cleanupLoop(ctx)
	}()

	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("job worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("job worker pool stopped")
}

func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for wp.processOne(ctx, workerID) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne claims and runs a single job. It reports whether a job was
// claimed.
func (wp *WorkerPool) processOne(ctx context.Context, workerID int) bool {
	job, err := wp.store.Claim(wp.cfg.MaxRetries)
	if err != nil {
		wp.logger.Error("failed to claim job", "workerID", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	log := wp.logger.With("workerID", workerID, "jobID", job.ID, "kind", job.Kind)
	log.Info("processing job", "source", job.SourcePath, "attempt", job.AttemptCount)

	start := time.Now()
	res, err := wp.importer.ImportFile(ctx, job.Kind, job.SourcePath, job.SourceName, job.Policy, job.Sheet)
	elapsed := time.Since(start)
	if err != nil {
		retries := wp.cfg.MaxRetries
		if permanent(err) {
			retries = 0
		}
		retry := job.AttemptCount < retries
		log.Error("job failed", "error", err, "retry", retry)
		if failErr := wp.store.Fail(job.ID, err.Error(), retries); failErr != nil {
			log.Error("failed to mark job as failed", "error", failErr)
		} else if !retry {
			wp.removeSource(log, job)
		}
		return true
	}

	log.Info("job completed",
		"imported", res.Imported,
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"duration", elapsed.String())

	if err := wp.store.Complete(job.ID, res.Counts, elapsed.Milliseconds()); err != nil {
		log.Error("failed to mark job as complete", "error", err)
		return true
	}
	wp.removeSource(log, job)
	return true
}

func (wp *WorkerPool) removeSource(log *slog.Logger, job *ImportJob) {
	if err := job.RemoveSource(); err != nil {
		log.Warn("failed to remove job source", "path", job.CleanupPath, "error", err)
	}
}

// permanent reports whether retrying err cannot help.
func permanent(err error) bool {
	return errors.Is(err, registry.ErrUnreadableSource) ||
		errors.Is(err, registry.ErrInvalidInput) ||
		errors.Is(err, registry.ErrCorruptDocument)
}

func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if wp.cfg.ClaimTimeout > 0 {
				recovered, err := wp.store.CleanupStuckJobs(wp.cfg.ClaimTimeout)
				if err != nil {
					wp.logger.Error("failed to cleanup stuck jobs", "error", err)
				} else if recovered > 0 {
					wp.logger.Info("recovered stuck jobs", "count", recovered)
				}
			}

			if wp.cfg.RetentionDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
				deleted, err := wp.store.DeleteOlderThan(cutoff)
				if err != nil {
					wp.logger.Error("failed to delete old jobs", "error", err)
				} else if deleted > 0 {
					wp.logger.Info("deleted old jobs", "count", deleted)
				}
			}
		}
	}
}
