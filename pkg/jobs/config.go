package jobs

import (
	"os"
	"strconv"
	"time"
)

// JobConfig controls the import queue and its workers.
type JobConfig struct {
	Concurrency   int           // Parallel workers. Default 2.
	MaxRetries    int           // Attempts per job before it fails for good. Default 3.
	PollInterval  time.Duration // Queue polling period. Default 2s.
	ClaimTimeout  time.Duration // A running job older than this is requeued. Default 10m.
	RetentionDays int           // Terminal jobs are kept this long. Default 14.
	Enabled       bool
}

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency:   2,
		MaxRetries:    3,
		PollInterval:  2 * time.Second,
		ClaimTimeout:  10 * time.Minute,
		RetentionDays: 14,
		Enabled:       true,
	}
}

// JobConfigFromEnv loads config from environment variables.
// MEMREG_JOB_CONCURRENCY, MEMREG_JOB_MAX_RETRIES, MEMREG_JOB_POLL_INTERVAL_SECONDS,
// MEMREG_JOB_CLAIM_TIMEOUT_MINUTES, MEMREG_JOB_RETENTION_DAYS, MEMREG_JOB_ENABLED
func JobConfigFromEnv() *JobConfig {
	cfg := DefaultJobConfig()

	if n, ok := envInt("MEMREG_JOB_CONCURRENCY", 1); ok {
		cfg.Concurrency = n
	}
	if n, ok := envInt("MEMREG_JOB_MAX_RETRIES", 0); ok {
		cfg.MaxRetries = n
	}
	if n, ok := envInt("MEMREG_JOB_POLL_INTERVAL_SECONDS", 1); ok {
		cfg.PollInterval = time.Duration(n) * time.Second
	}
	if n, ok := envInt("MEMREG_JOB_CLAIM_TIMEOUT_MINUTES", 1); ok {
		cfg.ClaimTimeout = time.Duration(n) * time.Minute
	}
	if n, ok := envInt("MEMREG_JOB_RETENTION_DAYS", 1); ok {
		cfg.RetentionDays = n
	}
	if v := os.Getenv("MEMREG_JOB_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	return cfg
}

// envInt reads an integer variable no smaller than min.
func envInt(key string, min int) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return 0, false
	}
	return n, true
}
