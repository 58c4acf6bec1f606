package config

const (
	defaultStateDir               = "~/.local/share/transkribator"
	defaultLogDir                 = "~/.local/share/transkribator/logs"
	defaultWorkspaceRoot          = "~/.local/share/transkribator/workspaces"
	defaultStoreURL               = "~/.local/share/transkribator/jobs.db"
	defaultLockTimeoutSeconds     = 600
	defaultPollIntervalSeconds    = 1
	defaultBackoffMinSeconds      = 1.0
	defaultBackoffMaxSeconds      = 30.0
	defaultReminderInterval       = 1800
	minReminderInterval           = 300
	defaultTelegramAPIBaseURL     = "https://api.telegram.org"
	defaultTranscriptionBaseURL   = "https://api.openai.com/v1"
	defaultTranscriptionModel     = "whisper-1"
	defaultTranscriptionTimeout   = 300
	defaultStatusCacheKeyPrefix   = "transkribator"
	defaultStatusCacheTTLSeconds  = 3600
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultStatusBind             = ""
	defaultTelegramRequestTimeout = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			WorkspaceRoot: defaultWorkspaceRoot,
		},
		Store: Store{
			URL:                defaultStoreURL,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
		Worker: Worker{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			BackoffMinSeconds:   defaultBackoffMinSeconds,
			BackoffMaxSeconds:   defaultBackoffMaxSeconds,
		},
		Reminders: Reminders{
			Enabled:         true,
			IntervalSeconds: defaultReminderInterval,
		},
		Telegram: Telegram{
			APIBaseURL:            defaultTelegramAPIBaseURL,
			RequestTimeoutSeconds: defaultTelegramRequestTimeout,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscriptionBaseURL,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		StatusCache: StatusCache{
			KeyPrefix:  defaultStatusCacheKeyPrefix,
			TTLSeconds: defaultStatusCacheTTLSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobFailures:    true,
			WorkerSummary:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Status: Status{
			Bind: defaultStatusBind,
		},
	}
}
