package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the caching layer.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, report
	// summaries are recomputed on every request and read responses pass
	// through uncached.
	Enabled bool

	// SummaryTTL bounds how long a report summary computed for one document
	// revision is kept.
	SummaryTTL time.Duration

	// ResponseTTL is the TTL for cached read API responses.
	ResponseTTL time.Duration

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:     true,
		SummaryTTL:  10 * time.Minute,
		ResponseTTL: 5 * time.Second,
		MaxSize:     256,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - MEMREG_CACHE_ENABLED: "true" or "false" (default: "true")
//   - MEMREG_CACHE_SUMMARY_TTL: duration in seconds (default: 600)
//   - MEMREG_CACHE_RESPONSE_TTL: duration in seconds (default: 5)
//   - MEMREG_CACHE_MAX_SIZE: max entries per cache (default: 256)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("MEMREG_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("MEMREG_CACHE_SUMMARY_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.SummaryTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("MEMREG_CACHE_RESPONSE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ResponseTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("MEMREG_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	return cfg
}
