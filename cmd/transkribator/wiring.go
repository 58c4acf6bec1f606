package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/jobs"
	"transkribator/internal/logging"
	"transkribator/internal/notifications"
	"transkribator/internal/pipeline"
	"transkribator/internal/preflight"
	"transkribator/internal/queue"
	"transkribator/internal/reminders"
	"transkribator/internal/services"
	"transkribator/internal/services/telegram"
	"transkribator/internal/statusapi"
	"transkribator/internal/statuscache"
	"transkribator/internal/worker"
)

type runOptions struct {
	once   bool
	dryRun bool
}

// workerRuntime holds the wired worker and everything it must close on exit.
type workerRuntime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  queue.Store
	mirror *statuscache.RedisMirror
	worker *worker.Worker
}

func buildRuntime(ctx context.Context, cfg *config.Config, opts runOptions, logger *slog.Logger) (*workerRuntime, error) {
	logPreflight(ctx, cfg, logger)

	store, err := queue.Open(ctx, queue.Options{URL: cfg.Store.URL, LockTimeout: cfg.LockTimeout(), Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	rt := &workerRuntime{cfg: cfg, logger: logger, store: store}

	svc, err := services.NewDefaultCatalog(cfg, logger).Build(cfg.Worker.ServiceOverrides)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build services: %w", err)
	}

	rt.mirror = openMirror(ctx, cfg, logger)

	handlerOpts := []pipeline.HandlerOption{pipeline.WithLogger(logger)}
	if rt.mirror != nil {
		handlerOpts = append(handlerOpts, pipeline.WithMirror(rt.mirror))
	}
	registry := jobs.NewRegistry()
	if err := pipeline.RegisterBuiltins(registry, pipeline.NewMediaHandler(store, svc, handlerOpts...), false); err != nil {
		rt.Close()
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	wcfg := worker.ConfigFromSettings(cfg)
	wcfg.RunOnce = opts.once
	wcfg.DryRun = opts.dryRun
	wcfg.SideTask = reminderSideTask(cfg, store, logger)
	wcfg.SideTaskInterval = cfg.ReminderInterval()

	workerOpts := []worker.Option{
		worker.WithLogger(logger),
		worker.WithNotifier(notifications.NewService(cfg)),
		worker.WithLockFile(worker.LockPath(cfg.Paths.StateDir, cfg.Worker.ID)),
	}
	if rt.mirror != nil {
		workerOpts = append(workerOpts, worker.WithOutcomeRecorder(rt.mirror))
	}
	rt.worker = worker.New(store, registry, wcfg, workerOpts...)
	return rt, nil
}

// Run starts the optional status endpoint and blocks in the worker loop.
func (rt *workerRuntime) Run(ctx context.Context) (worker.Summary, error) {
	if bind := strings.TrimSpace(rt.cfg.Status.Bind); bind != "" {
		deps := statusapi.Dependencies{Store: rt.store, Worker: rt.worker, Logger: rt.logger}
		if rt.mirror != nil {
			deps.Live = rt.mirror
		}
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := statusapi.Serve(serveCtx, bind, statusapi.NewRouter(deps), rt.logger); err != nil {
				logging.WarnWithContext(rt.logger, "status endpoint stopped", "status_api_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check status.bind for address conflicts"),
				)
			}
		}()
	}
	return rt.worker.Run(ctx)
}

// Close releases the store and the mirror connection.
func (rt *workerRuntime) Close() {
	if rt.mirror != nil {
		if err := rt.mirror.Close(); err != nil {
			rt.logger.Warn("failed to close status cache", logging.Error(err))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("failed to close job store", logging.Error(err))
		}
	}
}

func openMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) *statuscache.RedisMirror {
	url := strings.TrimSpace(cfg.StatusCache.RedisURL)
	if url == "" {
		return nil
	}
	ttl := time.Duration(cfg.StatusCache.TTLSeconds) * time.Second
	mirror, err := statuscache.NewRedisMirror(url, cfg.StatusCache.KeyPrefix, ttl)
	if err != nil {
		logging.WarnWithContext(logger, "status cache disabled", "status_cache_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check status_cache.redis_url"),
		)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := mirror.Ping(pingCtx); err != nil {
		logging.WarnWithContext(logger, "status cache unreachable; progress will only be stored in the job table", "status_cache_unreachable",
			logging.Error(err),
		)
	}
	return mirror
}

// reminderSideTask wires plan reminders when the store is PostgreSQL and a
// bot token is configured. It returns nil when reminders cannot run.
func reminderSideTask(cfg *config.Config, store queue.Store, logger *slog.Logger) worker.SideTask {
	if !cfg.Reminders.Enabled {
		return nil
	}
	pg, ok := store.(*queue.PostgresStore)
	if !ok {
		logger.Info("plan reminders need the PostgreSQL store; disabled",
			logging.String(logging.FieldEventType, "reminders_disabled"),
		)
		return nil
	}
	sender, err := telegram.New(cfg.Telegram, logger)
	if err != nil {
		if !errors.Is(err, telegram.ErrNotConfigured) {
			logger.Warn("plan reminders disabled", logging.Error(err))
		} else {
			logger.Info("plan reminders need a Telegram bot token; disabled",
				logging.String(logging.FieldEventType, "reminders_disabled"),
			)
		}
		return nil
	}

	task := reminders.New(reminders.NewPostgresSource(pg.Pool()), sender, logger)
	return func(ctx context.Context) error {
		sent, err := task.Run(ctx)
		if sent > 0 {
			logger.Info("plan reminders dispatched",
				logging.Int("count", sent),
				logging.String(logging.FieldEventType, "reminders_sent"),
			)
		}
		return err
	}
}

// logPreflight reports failing checks; the worker still starts.
func logPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run transkribator preflight for details"),
		)
	}
}
