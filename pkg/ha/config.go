// Package ha lets several memreg replicas share one database: schema
// migrations run under a database lock so only one replica changes the
// schema at a time.
package ha

import (
	"os"
	"strconv"
	"time"
)

// Config controls replica coordination.
type Config struct {
	// MigrationLockEnabled serializes schema migrations across replicas.
	MigrationLockEnabled bool

	// LockTimeout bounds the wait for another replica's migration.
	LockTimeout time.Duration

	// Identity is recorded as the lock holder. Defaults to the hostname.
	Identity string
}

// DefaultConfig enables the migration lock.
func DefaultConfig() Config {
	return Config{
		MigrationLockEnabled: true,
		LockTimeout:          30 * time.Second,
		Identity:             defaultIdentity(),
	}
}

// ConfigFromEnv overlays MEMREG_MIGRATION_LOCK_ENABLED,
// MEMREG_MIGRATION_LOCK_TIMEOUT_SECONDS and MEMREG_INSTANCE on the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if b, err := strconv.ParseBool(os.Getenv("MEMREG_MIGRATION_LOCK_ENABLED")); err == nil {
		cfg.MigrationLockEnabled = b
	}
	if secs, err := strconv.Atoi(os.Getenv("MEMREG_MIGRATION_LOCK_TIMEOUT_SECONDS")); err == nil && secs > 0 {
		cfg.LockTimeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("MEMREG_INSTANCE"); v != "" {
		cfg.Identity = v
	}
	return cfg
}

func defaultIdentity() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return hostname
}
