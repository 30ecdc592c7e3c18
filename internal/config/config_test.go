package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("RETENTION_SECRET", "retention-secret-32-chars-long!")
	os.Setenv("DB_PASSWORD", "test")
}

func TestLoad_SecurityDefaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Guard.AttemptThreshold != 5 {
		t.Errorf("AttemptThreshold: got %d, want 5", cfg.Guard.AttemptThreshold)
	}
	if cfg.Guard.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 15m", cfg.Guard.LockoutDuration)
	}
	if cfg.Quota.DailyLimit != 10 {
		t.Errorf("DailyLimit: got %d, want 10", cfg.Quota.DailyLimit)
	}
	if cfg.Anomaly.SpeedThresholdKmh != 1000 {
		t.Errorf("SpeedThresholdKmh: got %v, want 1000", cfg.Anomaly.SpeedThresholdKmh)
	}
	if cfg.Anomaly.MinElapsed != 2*time.Minute {
		t.Errorf("MinElapsed: got %v, want 2m", cfg.Anomaly.MinElapsed)
	}
	if cfg.Retention.AttemptWindow != 30*24*time.Hour {
		t.Errorf("AttemptWindow: got %v, want 720h", cfg.Retention.AttemptWindow)
	}
	if cfg.Retention.Interval != 0 {
		t.Errorf("Interval: got %v, want 0 (ticker disabled)", cfg.Retention.Interval)
	}
}

func TestLoad_SecurityOverrides(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GUARD_ATTEMPT_THRESHOLD", "3")
	os.Setenv("GUARD_LOCKOUT_DURATION", "30m")
	os.Setenv("ASSIST_DAILY_LIMIT", "25")
	os.Setenv("ANOMALY_SPEED_THRESHOLD_KMH", "800.5")
	os.Setenv("RETENTION_INTERVAL", "1h")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Guard.AttemptThreshold != 3 {
		t.Errorf("AttemptThreshold: got %d, want 3", cfg.Guard.AttemptThreshold)
	}
	if cfg.Guard.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Guard.LockoutDuration)
	}
	if cfg.Quota.DailyLimit != 25 {
		t.Errorf("DailyLimit: got %d, want 25", cfg.Quota.DailyLimit)
	}
	if cfg.Anomaly.SpeedThresholdKmh != 800.5 {
		t.Errorf("SpeedThresholdKmh: got %v, want 800.5", cfg.Anomaly.SpeedThresholdKmh)
	}
	if cfg.Retention.Interval != time.Hour {
		t.Errorf("Interval: got %v, want 1h", cfg.Retention.Interval)
	}
}

func TestLoad_ServerTimeouts(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SERVER_READ_TIMEOUT", "30s")
	// WriteTimeout and IdleTimeout not set, should use defaults
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout (custom)", cfg.Server.ReadTimeout, 30 * time.Second},
		{"WriteTimeout (default)", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout (default)", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GUARD_LOCKOUT_DURATION", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Guard.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration with invalid value: got %v, want 15m", cfg.Guard.LockoutDuration)
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")

	if _, err := Load(); err == nil {
		t.Error("expected error when JWT_SECRET is missing")
	}

	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	if _, err := Load(); err == nil {
		t.Error("expected error when RETENTION_SECRET is missing")
	}
	os.Clearenv()
}

func TestLoad_RejectsWeakSecret(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("JWT_SECRET", "short")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("expected error for a secret below minimum length")
	}
}

func TestLoad_RejectsZeroThreshold(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GUARD_ATTEMPT_THRESHOLD", "0")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("expected error for a zero attempt threshold")
	}
}

func TestLoad_AdminAddressList(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ALERT_ADMIN_ADDRESSES", "ops@example.com, security@example.com")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if len(cfg.Alerts.AdminAddresses) != 2 {
		t.Fatalf("expected 2 admin addresses, got %d", len(cfg.Alerts.AdminAddresses))
	}
	if cfg.Alerts.AdminAddresses[1] != "security@example.com" {
		t.Errorf("expected trimmed second address, got %q", cfg.Alerts.AdminAddresses[1])
	}
}
