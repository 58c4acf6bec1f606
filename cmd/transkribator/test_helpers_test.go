package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"transkribator/internal/config"
	"transkribator/internal/queue"
	"transkribator/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"DATABASE_URL", "JOB_WORKER_ID", "JOB_TYPES", "MEDIA_SERVICE_OVERRIDES", "TELEGRAM_BOT_TOKEN", "WHISPER_API_KEY", "REDIS_URL", "NTFY_TOPIC"} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"
	path := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, path, cfg)
	return &cliTestEnv{cfg: cfg, configPath: path}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) openStore(t *testing.T) queue.Store {
	t.Helper()
	store, err := queue.Open(context.Background(), queue.Options{URL: e.cfg.Store.URL, LockTimeout: e.cfg.LockTimeout()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
