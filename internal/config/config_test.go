package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/meditrack_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected default port 5000, got %s", cfg.Port)
	}
	if cfg.PollIntervalSecs != 30 {
		t.Errorf("expected default poll interval 30s, got %d", cfg.PollIntervalSecs)
	}
	if cfg.SweepIntervalHrs != 24 {
		t.Errorf("expected default sweep interval 24h, got %d", cfg.SweepIntervalHrs)
	}
	if cfg.MissedAfterHours != 12 {
		t.Errorf("expected default missed threshold 12h, got %d", cfg.MissedAfterHours)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing DATABASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/meditrack_test")
	t.Setenv("POLL_INTERVAL_SECONDS", "10")
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.PollInterval() != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %v", cfg.PollInterval())
	}
}

func TestValidate_RequiresSecretOutsideDev(t *testing.T) {
	cfg := &Config{
		Env:              "production",
		PollIntervalSecs: 30,
		SweepIntervalHrs: 24,
		MissedAfterHours: 12,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT_SECRET in production")
	}

	cfg.JWTSecret = "super-secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_PollIntervalBounds(t *testing.T) {
	cfg := &Config{
		Env:              "development",
		PollIntervalSecs: 90,
		SweepIntervalHrs: 24,
		MissedAfterHours: 12,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for poll interval over one minute")
	}

	cfg.PollIntervalSecs = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive poll interval")
	}
}
