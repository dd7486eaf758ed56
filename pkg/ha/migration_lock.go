package ha

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"gorm.io/gorm"
)

// ErrLockTimeout is returned when another replica holds the migration lock
// for longer than the configured timeout.
var ErrLockTimeout = errors.New("ha: timed out waiting for migration lock")

const lockName = "memreg-migration"

// MigrationLocker runs a function while holding the schema migration lock.
type MigrationLocker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker returns a locker for db. PostgreSQL uses an advisory
// lock. Other databases use a lock table, created here.
func NewMigrationLocker(db *gorm.DB, cfg Config) MigrationLocker {
	if db == nil || !cfg.MigrationLockEnabled {
		return noopMigrationLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &pgAdvisoryLock{
			db:     db,
			lockID: int64(crc32.ChecksumIEEE([]byte(lockName))),
		}
	}
	_ = db.AutoMigrate(&migrationLockRecord{})
	return &tableMigrationLock{db: db, cfg: cfg, retryInterval: 200 * time.Millisecond}
}

// Migrate runs each step in order while holding the migration lock.
func Migrate(ctx context.Context, db *gorm.DB, cfg Config, steps ...func() error) error {
	return NewMigrationLocker(db, cfg).WithLock(ctx, func() error {
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
}

type noopMigrationLock struct{}

func (noopMigrationLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

type pgAdvisoryLock struct {
	db     *gorm.DB
	lockID int64
}

func (l *pgAdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.lockID).Error; err != nil {
		return fmt.Errorf("ha: failed to acquire migration advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", l.lockID).Error
	}()
	return fn()
}

// migrationLockRecord is the single lock row used on SQLite and MySQL.
type migrationLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableMigrationLock inserts the lock row and fails while it exists. Rows
// older than staleLockAge are treated as left behind by a crashed replica.
type tableMigrationLock struct {
	db            *gorm.DB
	cfg           Config
	retryInterval time.Duration
}

const staleLockAge = 5 * time.Minute

func (l *tableMigrationLock) WithLock(ctx context.Context, fn func() error) error {
	deadline := time.Now().Add(l.cfg.LockTimeout)
	for {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", lockName, time.Now().Add(-staleLockAge)).
			Delete(&migrationLockRecord{})

		row := migrationLockRecord{ID: lockName, LockedAt: time.Now(), LockedBy: l.cfg.Identity}
		err := l.db.WithContext(ctx).Create(&row).Error
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	defer l.db.Where("id = ?", lockName).Delete(&migrationLockRecord{})

	return fn()
}
