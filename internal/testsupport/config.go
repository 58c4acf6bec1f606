package testsupport

import (
	"path/filepath"
	"testing"

	"transkribator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories and a
// SQLite store per test. It applies any provided options last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkspaceRoot = filepath.Join(base, "workspaces")
	cfgVal.Store.URL = filepath.Join(base, "jobs.db")
	cfgVal.Worker.ID = "test-worker"
	cfgVal.Reminders.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithWorkerID overrides the worker identity.
func WithWorkerID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.ID = id
	}
}

// WithJobTypes restricts the worker to the given job types.
func WithJobTypes(types ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.JobTypes = append([]string(nil), types...)
	}
}

// WithLockTimeout sets the store lock timeout in seconds.
func WithLockTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.LockTimeoutSeconds = seconds
	}
}
