package preflight

import (
	"context"

	"transkribator/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Workspace root", cfg.Paths.WorkspaceRoot),
		CheckStore(ctx, cfg),
	}

	if cfg.StatusCache.RedisURL != "" {
		results = append(results, CheckStatusCache(ctx, cfg.StatusCache))
	}
	if cfg.Telegram.BotToken != "" {
		results = append(results, CheckTelegram(ctx, cfg.Telegram))
	}
	if cfg.Transcription.APIKey != "" {
		results = append(results, CheckTranscription(ctx, cfg.Transcription))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
