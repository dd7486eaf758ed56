package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ImportJob{}))
	return db
}

func keyOf(s string) *string { return &s }

func newTestJob(kind, source string) *ImportJob {
	return &ImportJob{
		ID:             uuid.New().String(),
		Kind:           kind,
		SourcePath:     source,
		RequestedBy:    "test-user",
		RequestedAt:    time.Now(),
		State:          JobStateQueued,
		IdempotencyKey: keyOf(kind + ":" + source),
	}
}

func TestEnqueueCreatesJob(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job := newTestJob("assets", "/inbox/assets/a.xlsx")
	created, err := store.Enqueue(job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, created.ID)
	assert.Equal(t, JobStateQueued, created.State)
}

func TestEnqueueWithoutKey(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	for i := 0; i < 2; i++ {
		job := newTestJob("assets", "a.xlsx")
		job.IdempotencyKey = keyOf("")
		_, err := store.Enqueue(job)
		require.NoError(t, err)
		assert.Nil(t, job.IdempotencyKey)
	}

	_, _, total, err := store.List(JobListFilter{}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestEnqueueIdempotencyReturnsDuplicate(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job1 := newTestJob("assets", "a.xlsx")
	created1, err := store.Enqueue(job1)
	require.NoError(t, err)

	job2 := newTestJob("assets", "a.xlsx")
	created2, err := store.Enqueue(job2)
	require.NoError(t, err)

	assert.Equal(t, created1.ID, created2.ID)
}

func TestEnqueueIdempotencyAllowsAfterTerminal(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job1 := newTestJob("assets", "a.xlsx")
	_, err := store.Enqueue(job1)
	require.NoError(t, err)
	require.NoError(t, store.Complete(job1.ID, reconcile.Counts{Imported: 1, Created: 1}, 100))

	job2 := newTestJob("assets", "a.xlsx")
	created2, err := store.Enqueue(job2)
	require.NoError(t, err)
	assert.NotEqual(t, job1.ID, created2.ID)

	old, err := store.Get(job1.ID)
	require.NoError(t, err)
	assert.Empty(t, old.Key())
}

func TestClaimReturnsQueuedJob(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job := newTestJob("calibration", "plan.xlsx")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, JobStateRunning, claimed.State)
	assert.NotNil(t, claimed.StartedAt)
	assert.Equal(t, 1, claimed.AttemptCount)
}

func TestClaimOldestFirst(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	newer := newTestJob("assets", "b.xlsx")
	older := newTestJob("assets", "a.xlsx")
	older.RequestedAt = newer.RequestedAt.Add(-time.Minute)
	_, err := store.Enqueue(newer)
	require.NoError(t, err)
	_, err = store.Enqueue(older)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, older.ID, claimed.ID)
}

func TestClaimReturnsNilWhenEmpty(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimRespectsMaxRetries(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job := newTestJob("assets", "a.xlsx")
	job.AttemptCount = 4
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestCompleteRecordsCounts(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job := newTestJob("assets", "a.xlsx")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	counts := reconcile.Counts{Imported: 10, Created: 4, Updated: 6, Skipped: 2}
	require.NoError(t, store.Complete(job.ID, counts, 5000))

	result, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateSucceeded, result.State)
	assert.Equal(t, 10, result.Imported)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 6, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, int64(5000), result.DurationMs)
	assert.Equal(t, "Imported 10 rows: 4 created, 6 updated, 2 skipped", result.Message)
	assert.NotNil(t, result.FinishedAt)
}

func TestFailRequeuesWhenRetriesLeft(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job := newTestJob("assets", "a.xlsx")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	_, err = store.Claim(3)
	require.NoError(t, err)

	require.NoError(t, store.Fail(job.ID, "transient error", 3))

	result, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, result.State)
	assert.Equal(t, "transient error", result.LastError)
	assert.Nil(t, result.StartedAt)
}

func TestFailMarksFailedAtMaxRetries(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job := newTestJob("assets", "a.xlsx")
	job.AttemptCount = 3
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	require.NoError(t, store.Fail(job.ID, "fatal error", 3))

	result, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, result.State)
	assert.Equal(t, "Import failed: fatal error", result.Message)
}

func TestCancel(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	queued := newTestJob("assets", "a.xlsx")
	_, err := store.Enqueue(queued)
	require.NoError(t, err)
	require.NoError(t, store.Cancel(queued.ID))

	result, err := store.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateCanceled, result.State)

	running := newTestJob("assets", "b.xlsx")
	_, err = store.Enqueue(running)
	require.NoError(t, err)
	_, err = store.Claim(3)
	require.NoError(t, err)

	err = store.Cancel(running.ID)
	assert.ErrorIs(t, err, ErrNotCancelable)
	assert.Contains(t, err.Error(), "running")

	assert.ErrorIs(t, store.Cancel("nonexistent"), ErrJobNotFound)
}

func TestCancelRemovesSource(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	dir := filepath.Join(t.TempDir(), "job")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	source := filepath.Join(dir, "plan.xlsx")
	require.NoError(t, os.WriteFile(source, []byte("workbook"), 0o644))

	job := newTestJob("calibration", source)
	job.CleanupPath = dir
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	require.NoError(t, store.Cancel(job.ID))
	assert.NoDirExists(t, dir)
}

func TestGetReturnsNilForMissing(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	job, err := store.Get("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestListWithFilters(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	for i, kind := range []string{"assets", "assets", "calibration"} {
		j := newTestJob(kind, uuid.New().String())
		j.RequestedAt = time.Now().Add(time.Duration(i) * time.Second)
		_, err := store.Enqueue(j)
		require.NoError(t, err)
	}

	results, _, total, err := store.List(JobListFilter{Kind: "assets"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, results, 2)

	results, _, total, err = store.List(JobListFilter{State: string(JobStateQueued), RequestedBy: "test-user"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "calibration", results[0].Kind)
}

func TestListPagination(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	for i := 0; i < 5; i++ {
		j := newTestJob("assets", uuid.New().String())
		j.RequestedAt = time.Now().Add(time.Duration(i) * time.Minute)
		_, err := store.Enqueue(j)
		require.NoError(t, err)
	}

	results, nextToken, total, err := store.List(JobListFilter{}, 2, "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 5, total)
	assert.NotEmpty(t, nextToken)

	results2, nextToken2, _, err := store.List(JobListFilter{}, 2, nextToken)
	require.NoError(t, err)
	assert.Len(t, results2, 2)
	assert.NotEmpty(t, nextToken2)

	results3, nextToken3, _, err := store.List(JobListFilter{}, 2, nextToken2)
	require.NoError(t, err)
	assert.Len(t, results3, 1)
	assert.Empty(t, nextToken3)

	_, _, _, err = store.List(JobListFilter{}, 2, "not-a-time")
	assert.Error(t, err)
}

func TestCleanupStuckJobs(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)

	job := newTestJob("assets", "a.xlsx")
	_, err := store.Enqueue(job)
	require.NoError(t, err)
	_, err = store.Claim(3)
	require.NoError(t, err)

	db.Model(&ImportJob{}).Where("id = ?", job.ID).Update("started_at", time.Now().Add(-20*time.Minute))

	recovered, err := store.CleanupStuckJobs(10 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	result, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, result.State)
}

func TestDeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)

	job := newTestJob("assets", "a.xlsx")
	_, err := store.Enqueue(job)
	require.NoError(t, err)
	require.NoError(t, store.Complete(job.ID, reconcile.Counts{}, 100))

	db.Model(&ImportJob{}).Where("id = ?", job.ID).Update("finished_at", time.Now().Add(-10*24*time.Hour))

	deleted, err := store.DeleteOlderThan(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	result, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDeleteOlderThanRemovesLeftoverSources(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	source := filepath.Join(t.TempDir(), "upload-1.xlsx")
	require.NoError(t, os.WriteFile(source, []byte("workbook"), 0o644))

	job := newTestJob("assets", source)
	job.CleanupPath = source
	_, err := store.Enqueue(job)
	require.NoError(t, err)
	require.NoError(t, store.Complete(job.ID, reconcile.Counts{}, 10))
	db.Model(&ImportJob{}).Where("id = ?", job.ID).Update("finished_at", time.Now().Add(-10*24*time.Hour))

	kept := filepath.Join(t.TempDir(), "upload-2.xlsx")
	require.NoError(t, os.WriteFile(kept, []byte("workbook"), 0o644))
	recent := newTestJob("assets", kept)
	recent.CleanupPath = kept
	_, err = store.Enqueue(recent)
	require.NoError(t, err)
	require.NoError(t, store.Complete(recent.ID, reconcile.Counts{}, 10))

	deleted, err := store.DeleteOlderThan(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.NoFileExists(t, source)
	assert.FileExists(t, kept)
}
