package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays environment variables on top of file values. Unparseable
// numeric values are ignored and the file (or default) value is kept.
func (c *Config) applyEnv() {
	c.Store.URL = envString("DATABASE_URL", c.Store.URL)
	c.Store.LockTimeoutSeconds = envInt("JOB_LOCK_TIMEOUT_SECONDS", c.Store.LockTimeoutSeconds)

	c.Worker.ID = envString("JOB_WORKER_ID", c.Worker.ID)
	c.Worker.PollIntervalSeconds = envFloat("JOB_POLL_INTERVAL", c.Worker.PollIntervalSeconds)
	c.Worker.JobTypes = envList("JOB_TYPES", c.Worker.JobTypes)
	c.Worker.ServiceOverrides = envString("MEDIA_SERVICE_OVERRIDES", c.Worker.ServiceOverrides)
	c.Worker.MaxJobs = envInt("JOB_MAX_JOBS", c.Worker.MaxJobs)
	c.Worker.BackoffMinSeconds = envFloat("JOB_BACKOFF_MIN", c.Worker.BackoffMinSeconds)
	c.Worker.BackoffMaxSeconds = envFloat("JOB_BACKOFF_MAX", c.Worker.BackoffMaxSeconds)

	c.Reminders.IntervalSeconds = envInt("PLAN_REMINDER_INTERVAL", c.Reminders.IntervalSeconds)
	if envBool("DISABLE_PLAN_REMINDERS", false) {
		c.Reminders.Enabled = false
	}

	c.Telegram.BotToken = envString("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Transcription.APIKey = envString("WHISPER_API_KEY", c.Transcription.APIKey)
	c.StatusCache.RedisURL = envString("REDIS_URL", c.StatusCache.RedisURL)
	c.Notifications.NtfyTopic = envString("NTFY_TOPIC", c.Notifications.NtfyTopic)
	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)
}

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func envList(key string, defaultVal []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return splitList(v)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
