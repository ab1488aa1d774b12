package config_test

import (
	"strings"
	"testing"

	"jobconnect/realtime-service/internal/config"
)

// setRequired fills the two mandatory variables so tests can vary the rest.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/jobconnect")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("REALTIME_PORT", "")
	t.Setenv("REMINDER_SWEEP_HOURS", "")
	t.Setenv("REMINDER_WINDOW_HOURS", "")
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("Load() error = %v, want DATABASE_URL requirement", err)
	}
}

func TestLoad_MissingRedisURL(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
		t.Errorf("Load() error = %v, want REDIS_URL requirement", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Port != "8083" {
		t.Errorf("Port = %q, want default 8083", cfg.Port)
	}
	if cfg.ReminderSweepHours != 1 {
		t.Errorf("ReminderSweepHours = %d, want default 1", cfg.ReminderSweepHours)
	}
	if cfg.ReminderWindowHours != 24 {
		t.Errorf("ReminderWindowHours = %d, want default 24", cfg.ReminderWindowHours)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REALTIME_PORT", "9090")
	t.Setenv("REMINDER_SWEEP_HOURS", "2")
	t.Setenv("REMINDER_WINDOW_HOURS", "48")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.ReminderSweepHours != 2 {
		t.Errorf("ReminderSweepHours = %d, want 2", cfg.ReminderSweepHours)
	}
	if cfg.ReminderWindowHours != 48 {
		t.Errorf("ReminderWindowHours = %d, want 48", cfg.ReminderWindowHours)
	}
}

func TestLoad_RejectsBadReminderValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"sweep not a number", "REMINDER_SWEEP_HOURS", "abc"},
		{"sweep zero", "REMINDER_SWEEP_HOURS", "0"},
		{"sweep negative", "REMINDER_SWEEP_HOURS", "-3"},
		{"window not a number", "REMINDER_WINDOW_HOURS", "soon"},
		{"window zero", "REMINDER_WINDOW_HOURS", "0"},
		{"window negative", "REMINDER_WINDOW_HOURS", "-1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(c.key, c.value)

			if _, err := config.Load(); err == nil {
				t.Errorf("Load() with %s=%q expected error, got nil", c.key, c.value)
			}
		})
	}
}
