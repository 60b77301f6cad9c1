package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"briefcast/internal/config"
	"briefcast/internal/logging"
	"briefcast/internal/produce"
	"briefcast/internal/queue"
	"briefcast/internal/runner"
	"briefcast/internal/scheduler"
	"briefcast/internal/series"
	"briefcast/internal/services"
	"briefcast/internal/status"
)

// Daemon owns the long-running pieces: the worker pool, the series
// orchestrator, the HTTP API, and the autoqueue cron. A file lock enforces
// single-instance execution per data directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	series    *series.Orchestrator
	producer  *produce.Producer
	reporter  *status.Reporter

	api  *apiServer
	cron *cron.Cron

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Deps bundles the collaborators the daemon coordinates.
type Deps struct {
	Store     *queue.Store
	Runner    *runner.Runner
	Scheduler *scheduler.Scheduler
	Series    *series.Orchestrator
	Producer  *produce.Producer
	Reporter  *status.Reporter
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Runner == nil || deps.Scheduler == nil ||
		deps.Series == nil || deps.Producer == nil || deps.Reporter == nil {
		return nil, errors.New("daemon requires config, store, runner, scheduler, series, producer, and reporter")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "briefcast.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     deps.Store,
		runner:    deps.Runner,
		scheduler: deps.Scheduler,
		series:    deps.Series,
		producer:  deps.Producer,
		reporter:  deps.Reporter,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another briefcast daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.runner.Start(runCtx)
	d.series.Start(runCtx)

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.series.Stop()
			d.runner.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	if err := d.startAutoqueue(runCtx); err != nil {
		d.Stop()
		return err
	}

	d.running.Store(true)
	d.logger.Info("briefcast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if d.cron != nil {
		cronCtx := d.cron.Stop()
		<-cronCtx.Done()
		d.cron = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.series.Stop()
	d.runner.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("briefcast daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// startAutoqueue schedules one auto-sourced production per cron firing.
// An empty cron spec disables the schedule.
func (d *Daemon) startAutoqueue(ctx context.Context) error {
	spec := d.cfg.Production.AutoqueueCron
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		job, err := d.scheduler.Enqueue(ctx, queue.KindAutoqueue, "")
		if err != nil {
			if errors.Is(err, services.ErrCapExceeded) {
				d.logger.Info("autoqueue skipped, cap reached")
				return
			}
			d.logger.Warn("autoqueue enqueue failed", logging.Error(err))
			return
		}
		d.logger.Info("autoqueue job enqueued", logging.String(logging.FieldJobID, job.ID))
	})
	if err != nil {
		return fmt.Errorf("invalid autoqueue cron spec %q: %w", spec, err)
	}
	c.Start()
	d.cron = c
	d.logger.Info("autoqueue scheduled", logging.String("cron", spec))
	return nil
}
