package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"transkribator/internal/config"
	"transkribator/internal/logging"
)

type workerFlags struct {
	workerID         string
	pollInterval     float64
	jobTypes         []string
	once             bool
	maxJobs          int
	dryRun           bool
	backoffMin       float64
	backoffMax       float64
	serviceOverrides string
	reminderInterval int
	disableReminders bool
	statusAddr       string
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	flags := &workerFlags{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background job worker",
		Long: "Poll the job store and execute queued jobs until interrupted.\n\n" +
			"SIGINT and SIGTERM stop polling immediately; a job in flight finishes its\n" +
			"current stage and is returned to the queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyWorkerFlags(cmd, cfg, flags)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			rt, err := buildRuntime(runCtx, cfg, runOptions{once: flags.once, dryRun: flags.dryRun}, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := rt.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d job(s), %d failed in %s\n",
				summary.Processed, summary.Failed, summary.Runtime.Round(time.Millisecond))
			return nil
		},
	}

	bindWorkerFlags(cmd.Flags(), flags)
	return cmd
}

func bindWorkerFlags(f *pflag.FlagSet, flags *workerFlags) {
	f.StringVar(&flags.workerID, "worker-id", "", "Worker identity recorded on acquired jobs")
	f.Float64Var(&flags.pollInterval, "poll-interval", 0, "Seconds to wait after a failed acquire")
	f.StringSliceVar(&flags.jobTypes, "job-type", nil, "Only process these job types (repeatable)")
	f.BoolVar(&flags.once, "once", false, "Process a single job and exit")
	f.IntVar(&flags.maxJobs, "max-jobs", 0, "Exit after handling this many jobs")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Acquire jobs without dispatching or completing them")
	f.Float64Var(&flags.backoffMin, "backoff-min", 0, "Minimum idle backoff in seconds")
	f.Float64Var(&flags.backoffMax, "backoff-max", 0, "Maximum idle backoff in seconds")
	f.StringVar(&flags.serviceOverrides, "service-overrides", "", "Service collection, e.g. set:production or set:stub,transcribe=whisper")
	f.IntVar(&flags.reminderInterval, "reminder-interval", 0, "Seconds between plan reminder checks (minimum 300)")
	f.BoolVar(&flags.disableReminders, "disable-reminders", false, "Do not send plan reminders")
	f.StringVar(&flags.statusAddr, "status-addr", "", "Serve worker status over HTTP on this address")
}

// applyWorkerFlags overlays explicitly set flags on the loaded configuration.
func applyWorkerFlags(cmd *cobra.Command, cfg *config.Config, flags *workerFlags) {
	set := cmd.Flags().Changed
	if set("worker-id") && strings.TrimSpace(flags.workerID) != "" {
		cfg.Worker.ID = strings.TrimSpace(flags.workerID)
	}
	if set("poll-interval") && flags.pollInterval > 0 {
		cfg.Worker.PollIntervalSeconds = flags.pollInterval
	}
	if set("job-type") {
		cfg.Worker.JobTypes = normalizeList(flags.jobTypes)
	}
	if set("max-jobs") {
		cfg.Worker.MaxJobs = flags.maxJobs
	}
	if set("backoff-min") && flags.backoffMin > 0 {
		cfg.Worker.BackoffMinSeconds = flags.backoffMin
	}
	if set("backoff-max") && flags.backoffMax > 0 {
		cfg.Worker.BackoffMaxSeconds = flags.backoffMax
	}
	if set("service-overrides") {
		cfg.Worker.ServiceOverrides = strings.TrimSpace(flags.serviceOverrides)
	}
	if set("reminder-interval") && flags.reminderInterval > 0 {
		cfg.Reminders.IntervalSeconds = flags.reminderInterval
	}
	if flags.disableReminders {
		cfg.Reminders.Enabled = false
	}
	if set("status-addr") {
		cfg.Status.Bind = strings.TrimSpace(flags.statusAddr)
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
