package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeReminders()
	c.normalizeEndpoints()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot
	}
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	return nil
}

// normalizeStore expands SQLite paths and leaves PostgreSQL URLs untouched.
func (c *Config) normalizeStore() error {
	c.Store.URL = strings.TrimSpace(c.Store.URL)
	if c.Store.URL == "" || c.IsPostgres() || c.Store.URL == ":memory:" {
		return nil
	}
	path := c.Store.URL
	for _, prefix := range []string{"sqlite:///", "sqlite://", "file:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			if prefix == "sqlite:///" {
				path = "/" + path
			}
			break
		}
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("store.url: %w", err)
	}
	c.Store.URL = expanded
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.ID = strings.TrimSpace(c.Worker.ID)
	if c.Worker.ID == "" {
		c.Worker.ID = uuid.NewString()
	}
	seen := make(map[string]struct{}, len(c.Worker.JobTypes))
	types := make([]string, 0, len(c.Worker.JobTypes))
	for _, jobType := range c.Worker.JobTypes {
		jobType = strings.TrimSpace(jobType)
		if jobType == "" {
			continue
		}
		if _, ok := seen[jobType]; ok {
			continue
		}
		seen[jobType] = struct{}{}
		types = append(types, jobType)
	}
	c.Worker.JobTypes = types
	c.Worker.ServiceOverrides = strings.TrimSpace(c.Worker.ServiceOverrides)
}

func (c *Config) normalizeReminders() {
	if c.Reminders.IntervalSeconds < minReminderInterval {
		c.Reminders.IntervalSeconds = minReminderInterval
	}
}

func (c *Config) normalizeEndpoints() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIBaseURL), "/")
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = defaultTelegramAPIBaseURL
	}
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.StatusCache.RedisURL = strings.TrimSpace(c.StatusCache.RedisURL)
	c.StatusCache.KeyPrefix = strings.TrimSpace(c.StatusCache.KeyPrefix)
	if c.StatusCache.KeyPrefix == "" {
		c.StatusCache.KeyPrefix = defaultStatusCacheKeyPrefix
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Status.Bind = strings.TrimSpace(c.Status.Bind)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
