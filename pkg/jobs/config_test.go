package jobs

import (
	"testing"
	"time"
)

func TestDefaultJobConfig(t *testing.T) {
	cfg := DefaultJobConfig()

	if cfg.Concurrency != 2 {
		t.Errorf("expected Concurrency 2, got %d", cfg.Concurrency)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("expected PollInterval 2s, got %v", cfg.PollInterval)
	}
	if cfg.ClaimTimeout != 10*time.Minute {
		t.Errorf("expected ClaimTimeout 10m, got %v", cfg.ClaimTimeout)
	}
	if cfg.RetentionDays != 14 {
		t.Errorf("expected RetentionDays 14, got %d", cfg.RetentionDays)
	}
	if !cfg.Enabled {
		t.Error("expected Enabled to be true")
	}
}

func TestJobConfigFromEnv(t *testing.T) {
	tests := []struct {
		name            string
		envs            map[string]string
		wantConcurrency int
		wantMaxRetries  int
		wantPoll        time.Duration
		wantEnabled     bool
	}{
		{
			name:            "defaults",
			envs:            map[string]string{},
			wantConcurrency: 2,
			wantMaxRetries:  3,
			wantPoll:        2 * time.Second,
			wantEnabled:     true,
		},
		{
			name: "custom values",
			envs: map[string]string{
				"MEMREG_JOB_CONCURRENCY":           "5",
				"MEMREG_JOB_MAX_RETRIES":           "1",
				"MEMREG_JOB_POLL_INTERVAL_SECONDS": "9",
				"MEMREG_JOB_ENABLED":               "false",
			},
			wantConcurrency: 5,
			wantMaxRetries:  1,
			wantPoll:        9 * time.Second,
			wantEnabled:     false,
		},
		{
			name: "invalid concurrency falls back to default",
			envs: map[string]string{
				"MEMREG_JOB_CONCURRENCY": "invalid",
			},
			wantConcurrency: 2,
			wantMaxRetries:  3,
			wantPoll:        2 * time.Second,
			wantEnabled:     true,
		},
		{
			name: "zero retries allowed",
			envs: map[string]string{
				"MEMREG_JOB_MAX_RETRIES": "0",
			},
			wantConcurrency: 2,
			wantMaxRetries:  0,
			wantPoll:        2 * time.Second,
			wantEnabled:     true,
		},
		{
			name: "zero concurrency rejected",
			envs: map[string]string{
				"MEMREG_JOB_CONCURRENCY": "0",
			},
			wantConcurrency: 2,
			wantMaxRetries:  3,
			wantPoll:        2 * time.Second,
			wantEnabled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}

			cfg := JobConfigFromEnv()

			if cfg.Concurrency != tt.wantConcurrency {
				t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, tt.wantConcurrency)
			}
			if cfg.MaxRetries != tt.wantMaxRetries {
				t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, tt.wantMaxRetries)
			}
			if cfg.PollInterval != tt.wantPoll {
				t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, tt.wantPoll)
			}
			if cfg.Enabled != tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", cfg.Enabled, tt.wantEnabled)
			}
		})
	}
}
