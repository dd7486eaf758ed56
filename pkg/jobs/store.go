package jobs

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
)

var (
	// ErrJobNotFound is returned when no job has the requested id.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotCancelable is returned when canceling a job that already left the queue.
	ErrNotCancelable = errors.New("only queued jobs can be canceled")
)

// JobStore provides database operations for import jobs.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// AutoMigrate creates or updates the import_jobs table.
func (s *JobStore) AutoMigrate() error {
	return s.db.AutoMigrate(&ImportJob{})
}

// JobListFilter defines filters for listing jobs.
type JobListFilter struct {
	Kind        string
	State       string
	RequestedBy string
}

var activeStates = []JobState{JobStateQueued, JobStateRunning}
var terminalStates = []JobState{JobStateSucceeded, JobStateFailed, JobStateCanceled}

// Enqueue creates a new queued job. If the job carries an idempotency key
// and a queued or running job with the same key exists, that job is returned
// instead. Safe for concurrent use.
func (s *JobStore) Enqueue(job *ImportJob) (*ImportJob, error) {
	if job.State == "" {
		job.State = JobStateQueued
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now()
	}

	key := job.Key()
	if key == "" {
		job.IdempotencyKey = nil
		if err := s.db.Create(job).Error; err != nil {
			return nil, fmt.Errorf("enqueue job: %w", err)
		}
		return job, nil
	}

	var result *ImportJob
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing ImportJob
		err := tx.Where("idempotency_key = ? AND state IN ?", key, activeStates).
			First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check idempotency key: %w", err)
		}

		// Release the key held by finished jobs so the unique index allows a rerun.
		tx.Model(&ImportJob{}).
			Where("idempotency_key = ? AND state IN ?", key, terminalStates).
			Update("idempotency_key", nil)

		if err := tx.Create(job).Error; err != nil {
			var raced ImportJob
			lookupErr := s.db.Where("idempotency_key = ? AND state IN ?", key, activeStates).
				First(&raced).Error
			if lookupErr == nil {
				result = &raced
				return nil
			}
			return fmt.Errorf("enqueue job: %w", err)
		}
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Claim atomically picks the oldest queued job and moves it to running.
// Uses FOR UPDATE SKIP LOCKED where supported. Returns nil if the queue is
// empty.
func (s *JobStore) Claim(maxRetries int) (*ImportJob, error) {
	var job ImportJob

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Raw(`
			SELECT * FROM import_jobs
			WHERE state = ? AND attempt_count <= ?
			ORDER BY requested_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, JobStateQueued, maxRetries).Scan(&job)

		if result.Error != nil {
			// SQLite has no row locks.
			result = tx.Where("state = ? AND attempt_count <= ?", JobStateQueued, maxRetries).
				Order("requested_at ASC").
				Limit(1).
				First(&job)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrRecordNotFound) {
					return nil
				}
				return result.Error
			}
		}

		if job.ID == "" {
			return nil
		}

		now := time.Now()
		return tx.Model(&ImportJob{}).Where("id = ? AND state = ?", job.ID, JobStateQueued).
			Updates(map[string]any{
				"state":         JobStateRunning,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if job.ID == "" {
		return nil, nil
	}

	if err := s.db.First(&job, "id = ?", job.ID).Error; err != nil {
		return nil, fmt.Errorf("reload claimed job: %w", err)
	}
	return &job, nil
}

// Complete marks a job as succeeded and records its import counts.
func (s *JobStore) Complete(jobID string, counts reconcile.Counts, durationMs int64) error {
	now := time.Now()
	result := s.db.Model(&ImportJob{}).Where("id = ?", jobID).Updates(map[string]any{
		"state":       JobStateSucceeded,
		"finished_at": now,
		"imported":    counts.Imported,
		"created":     counts.Created,
		"updated":     counts.Updated,
		"skipped":     counts.Skipped,
		"duration_ms": durationMs,
		"message": fmt.Sprintf("Imported %d rows: %d created, %d updated, %d skipped",
			counts.Imported, counts.Created, counts.Updated, counts.Skipped),
	})
	if result.Error != nil {
		return fmt.Errorf("complete job: %w", result.Error)
	}
	return nil
}

// Fail records a failed attempt. The job goes back to the queue while its
// attempt count is below maxRetries and fails for good otherwise.
func (s *JobStore) Fail(jobID string, errMsg string, maxRetries int) error {
	var job ImportJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("load job for fail: %w", err)
	}

	updates := map[string]any{
		"last_error":  errMsg,
		"finished_at": time.Now(),
	}
	if job.AttemptCount < maxRetries {
		updates["state"] = JobStateQueued
		updates["started_at"] = nil
		updates["finished_at"] = nil
	} else {
		updates["state"] = JobStateFailed
		updates["message"] = "Import failed: " + errMsg
	}

	if err := s.db.Model(&ImportJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Cancel marks a queued job as canceled and removes its source. Running
// jobs are left alone.
func (s *JobStore) Cancel(jobID string) error {
	result := s.db.Model(&ImportJob{}).
		Where("id = ? AND state = ?", jobID, JobStateQueued).
		Updates(map[string]any{
			"state":       JobStateCanceled,
			"finished_at": time.Now(),
			"message":     "Canceled by user",
		})
	if result.Error != nil {
		return fmt.Errorf("cancel job: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		if job, err := s.Get(jobID); err == nil && job != nil {
			_ = job.RemoveSource()
		}
		return nil
	}

	job, err := s.Get(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return fmt.Errorf("%w: job %s is %s", ErrNotCancelable, jobID, job.State)
}

// Get retrieves a job by ID, or nil if it does not exist.
func (s *JobStore) Get(jobID string) (*ImportJob, error) {
	var job ImportJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns paginated jobs matching filter, newest first.
func (s *JobStore) List(filter JobListFilter, pageSize int, pageToken string) ([]ImportJob, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&ImportJob{})
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.RequestedBy != "" {
			q = q.Where("requested_by = ?", filter.RequestedBy)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count jobs: %w", err)
	}

	query := buildQuery(s.db).Order("requested_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("requested_at < ?", t)
	}

	var records []ImportJob
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list jobs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].RequestedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// CleanupStuckJobs requeues running jobs whose start is older than
// claimTimeout.
func (s *JobStore) CleanupStuckJobs(claimTimeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-claimTimeout)
	result := s.db.Model(&ImportJob{}).
		Where("state = ? AND started_at < ?", JobStateRunning, cutoff).
		Updates(map[string]any{
			"state":      JobStateQueued,
			"started_at": nil,
			"last_error": "Timed out (stuck job recovery)",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup stuck jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOlderThan removes terminal jobs that finished before cutoff, along
// with any source files they still own.
func (s *JobStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var owned []ImportJob
	if err := s.db.Select("id", "cleanup_path").
		Where("state IN ? AND finished_at < ? AND cleanup_path <> ''", terminalStates, cutoff).
		Find(&owned).Error; err != nil {
		return 0, fmt.Errorf("find old job sources: %w", err)
	}
	for i := range owned {
		_ = owned[i].RemoveSource()
	}

	result := s.db.Where("state IN ? AND finished_at < ?", terminalStates, cutoff).
		Delete(&ImportJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
