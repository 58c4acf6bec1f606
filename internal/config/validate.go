package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.URL == "" {
		return errors.New("store.url must be set (or DATABASE_URL)")
	}
	if c.Store.LockTimeoutSeconds <= 0 {
		return errors.New("store.lock_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.PollIntervalSeconds <= 0 {
		return errors.New("worker.poll_interval_seconds must be positive")
	}
	if c.Worker.BackoffMinSeconds <= 0 {
		return errors.New("worker.backoff_min_seconds must be positive")
	}
	if c.Worker.BackoffMaxSeconds < c.Worker.BackoffMinSeconds {
		return fmt.Errorf("worker.backoff_max_seconds (%g) must be >= worker.backoff_min_seconds (%g)", c.Worker.BackoffMaxSeconds, c.Worker.BackoffMinSeconds)
	}
	if c.Worker.MaxJobs < 0 {
		return errors.New("worker.max_jobs must be zero (unlimited) or positive")
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	for key, value := range map[string]string{
		"telegram.api_base_url":  c.Telegram.APIBaseURL,
		"transcription.base_url": c.Transcription.BaseURL,
	} {
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", key, value)
		}
	}
	if url := c.StatusCache.RedisURL; url != "" {
		if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
			return fmt.Errorf("status_cache.redis_url must start with redis:// or rediss://, got %q", url)
		}
	}
	if c.StatusCache.TTLSeconds < 0 {
		return errors.New("status_cache.ttl_seconds must not be negative")
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
