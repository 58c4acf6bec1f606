package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transkribator/internal/config"
)

func TestLoadDefaultsExpandPathsAndGenerateWorkerID(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStore := filepath.Join(tempHome, ".local", "share", "transkribator", "jobs.db")
	if cfg.Store.URL != wantStore {
		t.Fatalf("unexpected store url: got %q want %q", cfg.Store.URL, wantStore)
	}
	if cfg.LockTimeout() != 600*time.Second {
		t.Fatalf("unexpected lock timeout: %s", cfg.LockTimeout())
	}
	if cfg.BackoffMin() != time.Second || cfg.BackoffMax() != 30*time.Second {
		t.Fatalf("unexpected backoff bounds: %s..%s", cfg.BackoffMin(), cfg.BackoffMax())
	}
	if cfg.Worker.ID == "" {
		t.Fatal("expected generated worker id")
	}
	if !cfg.Reminders.Enabled {
		t.Fatal("expected reminders enabled by default")
	}
	if cfg.ReminderInterval() != 30*time.Minute {
		t.Fatalf("unexpected reminder interval: %s", cfg.ReminderInterval())
	}
	if cfg.IsPostgres() {
		t.Fatal("default store should be sqlite")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.WorkspaceRoot} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "transkribator.toml")
	content := `
[store]
url = "postgres://worker:secret@db:5432/transkribator"
lock_timeout_seconds = 120

[worker]
id = "worker-a"
job_types = ["media_processing", " media_processing ", ""]
backoff_min_seconds = 0.5
backoff_max_seconds = 4

[reminders]
interval_seconds = 60
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if !cfg.IsPostgres() {
		t.Fatalf("expected postgres store, got %q", cfg.Store.URL)
	}
	if cfg.LockTimeout() != 2*time.Minute {
		t.Fatalf("unexpected lock timeout: %s", cfg.LockTimeout())
	}
	if cfg.Worker.ID != "worker-a" {
		t.Fatalf("unexpected worker id %q", cfg.Worker.ID)
	}
	if len(cfg.Worker.JobTypes) != 1 || cfg.Worker.JobTypes[0] != "media_processing" {
		t.Fatalf("expected deduplicated job types, got %v", cfg.Worker.JobTypes)
	}
	if cfg.BackoffMin() != 500*time.Millisecond {
		t.Fatalf("unexpected backoff min: %s", cfg.BackoffMin())
	}
	if cfg.Reminders.IntervalSeconds != 300 {
		t.Fatalf("expected reminder interval floor of 300, got %d", cfg.Reminders.IntervalSeconds)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("JOB_WORKER_ID", "env-worker")
	t.Setenv("JOB_TYPES", "media_processing, export")
	t.Setenv("JOB_POLL_INTERVAL", "2.5")
	t.Setenv("JOB_MAX_JOBS", "7")
	t.Setenv("JOB_BACKOFF_MAX", "not-a-number")
	t.Setenv("DISABLE_PLAN_REMINDERS", "true")
	t.Setenv("MEDIA_SERVICE_OVERRIDES", "set:local")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "env.db"))

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Worker.ID != "env-worker" {
		t.Fatalf("unexpected worker id %q", cfg.Worker.ID)
	}
	if got := strings.Join(cfg.Worker.JobTypes, ","); got != "media_processing,export" {
		t.Fatalf("unexpected job types %q", got)
	}
	if cfg.PollInterval() != 2500*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval())
	}
	if cfg.Worker.MaxJobs != 7 {
		t.Fatalf("unexpected max jobs %d", cfg.Worker.MaxJobs)
	}
	if cfg.BackoffMax() != 30*time.Second {
		t.Fatalf("invalid env value should keep default, got %s", cfg.BackoffMax())
	}
	if cfg.Reminders.Enabled {
		t.Fatal("expected reminders disabled via env")
	}
	if cfg.Worker.ServiceOverrides != "set:local" {
		t.Fatalf("unexpected overrides %q", cfg.Worker.ServiceOverrides)
	}
}

func TestValidateRejectsInvertedBackoff(t *testing.T) {
	cfg := config.Default()
	cfg.Worker.BackoffMinSeconds = 10
	cfg.Worker.BackoffMaxSeconds = 5
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "backoff_max_seconds") {
		t.Fatalf("expected backoff validation error, got %v", err)
	}
}

func TestValidateRejectsBadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.StatusCache.RedisURL = "http://localhost:6379"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected redis url validation error")
	}
}

func TestSQLitePrefixStripped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.db")
	t.Setenv("HOME", dir)
	t.Setenv("DATABASE_URL", "sqlite://"+path)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.URL != path {
		t.Fatalf("expected %q, got %q", path, cfg.Store.URL)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly, exists=%v err=%v", exists, err)
	}
}
