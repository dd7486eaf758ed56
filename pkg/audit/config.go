package audit

import (
	"os"
	"strconv"
)

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Enabled       bool
	LogDenied     bool // record 401 and 403 responses
	RetentionDays int  // 0 keeps events forever
}

// DefaultAuditConfig keeps a year of events, denials included.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:       true,
		LogDenied:     true,
		RetentionDays: 365,
	}
}

// AuditConfigFromEnv overlays MEMREG_AUDIT_ENABLED, MEMREG_AUDIT_LOG_DENIED
// and MEMREG_AUDIT_RETENTION_DAYS on the defaults. Unparseable values are
// ignored.
func AuditConfigFromEnv() *AuditConfig {
	cfg := DefaultAuditConfig()

	if b, err := strconv.ParseBool(os.Getenv("MEMREG_AUDIT_ENABLED")); err == nil {
		cfg.Enabled = b
	}
	if b, err := strconv.ParseBool(os.Getenv("MEMREG_AUDIT_LOG_DENIED")); err == nil {
		cfg.LogDenied = b
	}
	if days, err := strconv.Atoi(os.Getenv("MEMREG_AUDIT_RETENTION_DAYS")); err == nil && days >= 0 {
		cfg.RetentionDays = days
	}

	return cfg
}
