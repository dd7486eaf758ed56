package inbox

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds drop-folder settings.
type Config struct {
	// Enabled turns the watcher on.
	Enabled bool
	// Dir holds the assets/ and calibration/ drop folders.
	Dir string
	// Debounce is how long a file must stay untouched before it is queued.
	Debounce time.Duration
	// Policy is passed to every queued import. Empty uses the collection default.
	Policy string
}

// DefaultConfig returns the inbox defaults. The inbox is off by default.
func DefaultConfig() Config {
	return Config{
		Dir:      "inbox",
		Debounce: 2 * time.Second,
	}
}

// ConfigFromEnv reads inbox settings, falling back to defaults.
//
// Environment variables:
//   - MEMREG_INBOX_ENABLED: "true" or "false" (default: "false")
//   - MEMREG_INBOX_DIR: drop folder root (default: "inbox")
//   - MEMREG_INBOX_DEBOUNCE_MS: settle time in milliseconds (default: 2000)
//   - MEMREG_INBOX_POLICY: "merge" or "replace" (default: collection default)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("MEMREG_INBOX_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMREG_INBOX_DIR")); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv("MEMREG_INBOX_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Debounce = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMREG_INBOX_POLICY")); v != "" {
		cfg.Policy = v
	}
	return cfg
}
