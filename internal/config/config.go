package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	WorkspaceRoot string `toml:"workspace_root"`
}

// Store selects the job store backend. URL is either a PostgreSQL URL or a
// SQLite path (optionally prefixed with sqlite:// or file:).
type Store struct {
	URL                string `toml:"url"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Worker contains settings for the job worker loop.
type Worker struct {
	ID                  string   `toml:"id"`
	PollIntervalSeconds float64  `toml:"poll_interval_seconds"`
	JobTypes            []string `toml:"job_types"`
	BackoffMinSeconds   float64  `toml:"backoff_min_seconds"`
	BackoffMaxSeconds   float64  `toml:"backoff_max_seconds"`
	MaxJobs             int      `toml:"max_jobs"`
	ServiceOverrides    string   `toml:"service_overrides"`
}

// Reminders configures the plan reminder side task.
type Reminders struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

// Telegram contains Bot API connection settings.
type Telegram struct {
	BotToken              string `toml:"bot_token"`
	APIBaseURL            string `toml:"api_base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Transcription contains settings for the Whisper-compatible HTTP API.
type Transcription struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// StatusCache configures the Redis progress mirror. An empty URL disables it.
type StatusCache struct {
	RedisURL   string `toml:"redis_url"`
	KeyPrefix  string `toml:"key_prefix"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobFailures    bool   `toml:"job_failures"`
	WorkerSummary  bool   `toml:"worker_summary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Status configures the worker status HTTP endpoint. An empty bind disables it.
type Status struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for transkribator.
//
// Configuration sections by subsystem:
//   - Paths: state, log and workspace directories
//   - Store: job store URL and lock timeout
//   - Worker: worker identity, polling, backoff and bounded-run settings
//   - Reminders: plan reminder side task
//   - Telegram: Bot API credentials used for download and delivery
//   - Transcription: Whisper-compatible transcription API
//   - StatusCache: Redis mirror for job progress
//   - Notifications: ntfy operator alerts
//   - Logging: log format and level
//   - Status: worker status HTTP endpoint
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Worker        Worker        `toml:"worker"`
	Reminders     Reminders     `toml:"reminders"`
	Telegram      Telegram      `toml:"telegram"`
	Transcription Transcription `toml:"transcription"`
	StatusCache   StatusCache   `toml:"status_cache"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Status        Status        `toml:"status"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/transkribator/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables override values from the file. The returned config has all path
// fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("transkribator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the worker writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.WorkspaceRoot} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockTimeout returns the stale-lock threshold used by the job store.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Store.LockTimeoutSeconds) * time.Second
}

// PollInterval returns the wait applied after a failed acquire.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Worker.PollIntervalSeconds)
}

// BackoffMin returns the idle backoff floor.
func (c *Config) BackoffMin() time.Duration {
	return seconds(c.Worker.BackoffMinSeconds)
}

// BackoffMax returns the idle backoff ceiling.
func (c *Config) BackoffMax() time.Duration {
	return seconds(c.Worker.BackoffMaxSeconds)
}

// ReminderInterval returns the period of the plan reminder side task.
func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.Reminders.IntervalSeconds) * time.Second
}

// IsPostgres reports whether the store URL targets PostgreSQL.
func (c *Config) IsPostgres() bool {
	url := strings.ToLower(strings.TrimSpace(c.Store.URL))
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
