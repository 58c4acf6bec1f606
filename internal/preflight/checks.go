package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"transkribator/internal/config"
	"transkribator/internal/logging"
	"transkribator/internal/queue"
	"transkribator/internal/services/telegram"
	"transkribator/internal/services/whisper"
	"transkribator/internal/statuscache"
)

const checkTimeout = 10 * time.Second

// CheckStore opens the configured job store and pings it. Opening applies
// pending schema migrations, so a passing check also means the schema is current.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Job store"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	store, err := queue.Open(checkCtx, queue.Options{
		URL:         cfg.Store.URL,
		LockTimeout: cfg.LockTimeout(),
		Logger:      logging.NewNop(),
	})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer store.Close()

	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("ping", err)}
	}
	kind := "sqlite"
	if cfg.IsPostgres() {
		kind = "postgres"
	}
	return Result{Name: name, Passed: true, Detail: kind + " reachable"}
}

// CheckStatusCache verifies the Redis progress mirror answers PING.
func CheckStatusCache(ctx context.Context, cfg config.StatusCache) Result {
	const name = "Status cache"

	mirror, err := statuscache.NewRedisMirror(cfg.RedisURL, cfg.KeyPrefix, time.Duration(cfg.TTLSeconds)*time.Second)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer mirror.Close()

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := mirror.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("ping", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckTelegram verifies the bot token with getMe.
func CheckTelegram(ctx context.Context, cfg config.Telegram) Result {
	const name = "Telegram Bot API"

	client, err := telegram.New(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	user, err := client.GetMe(checkCtx)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusNotFound) {
			return Result{Name: name, Detail: "auth failed (invalid bot token)"}
		}
		return Result{Name: name, Detail: summarizeError("getMe", err)}
	}
	return Result{Name: name, Passed: true, Detail: "@" + user.Username}
}

// CheckTranscription verifies that the transcription API is reachable and
// the key is valid. It makes a single attempt with no retries.
func CheckTranscription(ctx context.Context, cfg config.Transcription) Result {
	const name = "Transcription API"

	client, err := whisper.New(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		if code := whisper.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
			return Result{Name: name, Detail: "auth failed (invalid api key)"}
		}
		return Result{Name: name, Detail: summarizeError("health check", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeError(action string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return action + " timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return action + " timed out (unreachable)"
	}
	return fmt.Sprintf("%s failed (%v)", action, err)
}
