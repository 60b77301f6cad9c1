// Package daemonrun bootstraps the briefcast daemon process: logger, store,
// service clients, producer wiring, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"briefcast/internal/config"
	"briefcast/internal/daemon"
	"briefcast/internal/feed"
	"briefcast/internal/guard"
	"briefcast/internal/logging"
	"briefcast/internal/produce"
	"briefcast/internal/queue"
	"briefcast/internal/runner"
	"briefcast/internal/scheduler"
	"briefcast/internal/series"
	"briefcast/internal/services/scriptgen"
	"briefcast/internal/services/voice"
	"briefcast/internal/status"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the briefcast daemon and blocks until the context is canceled
// or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	scripts := scriptgen.NewClient(cfg.ScriptGen)
	voices := voice.NewClient(cfg.Voice)
	publisher := feed.NewPublisher(cfg, store, logger)

	g := guard.New(cfg, store)
	// Startup housekeeping: drop cap-accounting rows that aged out of the
	// rolling window.
	if err := g.Prune(signalCtx); err != nil {
		logger.Warn("production accounting prune failed", logging.Error(err))
	}

	r := runner.New(store, logger, cfg.Production.Workers)
	sched := scheduler.New(store, g, r, logger)

	producer := produce.New(cfg, store, scripts, voices, publisher, logger)
	producer.RegisterAll(sched)

	orchestrator := series.New(store, sched, scripts, logger)
	reporter := status.New(store, g)

	d, err := daemon.New(cfg, daemon.Deps{
		Store:     store,
		Runner:    r,
		Scheduler: sched,
		Series:    orchestrator,
		Producer:  producer,
		Reporter:  reporter,
	}, logger)
	if err != nil {
		return err
	}

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	// Heal the published feed on startup in case the previous process died
	// between catalog write and publish.
	if err := publisher.Republish(signalCtx); err != nil {
		logger.Warn("startup feed rebuild failed", logging.Error(err))
	}

	<-signalCtx.Done()
	return nil
}
