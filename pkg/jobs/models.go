package jobs

import (
	"fmt"
	"os"
	"time"
)

// JobState represents the lifecycle state of an import job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// ImportJob is the GORM model for a queued spreadsheet import.
type ImportJob struct {
	ID             string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Kind           string     `gorm:"column:kind;index:idx_job_kind_state,priority:1;not null"`
	Policy         string     `gorm:"column:policy"`
	Sheet          string     `gorm:"column:sheet"`
	SourcePath     string     `gorm:"column:source_path;not null"`
	SourceName     string     `gorm:"column:source_name"`
	CleanupPath    string     `gorm:"column:cleanup_path"`
	RequestedBy    string     `gorm:"column:requested_by;not null"`
	RequestedAt    time.Time  `gorm:"column:requested_at;not null"`
	State          JobState   `gorm:"column:state;index:idx_job_kind_state,priority:2;index:idx_job_state;not null;default:queued"`
	Message        string     `gorm:"column:message"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
	AttemptCount   int        `gorm:"column:attempt_count;default:0"`
	LastError      string     `gorm:"column:last_error"`
	IdempotencyKey *string    `gorm:"column:idempotency_key;uniqueIndex:idx_job_idemp_key"`
	Imported       int        `gorm:"column:imported"`
	Created        int        `gorm:"column:created"`
	Updated        int        `gorm:"column:updated"`
	Skipped        int        `gorm:"column:skipped"`
	DurationMs     int64      `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (ImportJob) TableName() string { return "import_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *ImportJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// RemoveSource deletes the files the job owns. It is called once the job
// reaches a terminal state.
func (j *ImportJob) RemoveSource() error {
	if j.CleanupPath == "" {
		return nil
	}
	if err := os.RemoveAll(j.CleanupPath); err != nil {
		return fmt.Errorf("jobs: failed to remove %s: %w", j.CleanupPath, err)
	}
	return nil
}

// Key returns the idempotency key, or "" when the job has none.
func (j *ImportJob) Key() string {
	if j.IdempotencyKey == nil {
		return ""
	}
	return *j.IdempotencyKey
}
