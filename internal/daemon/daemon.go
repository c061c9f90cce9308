// Package daemon ties the monitor and scheduler into a long-running
// background process.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/trigger"
	"github.com/focuslock/sessiond/internal/usecase"
)

// Config holds daemon loop intervals.
type Config struct {
	CleanupInterval time.Duration // How often to sweep exhausted schedules
}

// DefaultConfig returns default daemon configuration.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 6 * time.Hour,
	}
}

// Daemon runs the trigger registry and periodic housekeeping. The app
// monitor is started on demand (session start) rather than here; the
// daemon only has to keep it alive and shut it down cleanly.
type Daemon struct {
	config    Config
	monitor   *usecase.AppMonitor
	scheduler *usecase.Scheduler
	triggers  *trigger.Registry
	logger    *zap.Logger
}

// New creates a daemon.
func New(
	config Config,
	monitor *usecase.AppMonitor,
	scheduler *usecase.Scheduler,
	triggers *trigger.Registry,
	logger *zap.Logger,
) *Daemon {
	return &Daemon{
		config:    config,
		monitor:   monitor,
		scheduler: scheduler,
		triggers:  triggers,
		logger:    logger,
	}
}

// Run blocks until the context is canceled. On startup it re-arms
// persisted schedules and runs one cleanup sweep, then lets the trigger
// registry do the scheduling.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("sessiond daemon started")

	if err := d.scheduler.InitializeStoredSchedules(); err != nil {
		d.logger.Error("failed to initialize stored schedules", zap.Error(err))
		return err
	}

	d.runCleanup()

	triggerDone := make(chan error, 1)
	go func() {
		triggerDone <- d.triggers.Run(ctx)
	}()

	cleanupTicker := time.NewTicker(d.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("sessiond daemon stopping")
			d.monitor.StopMonitoring()
			<-triggerDone
			return ctx.Err()

		case err := <-triggerDone:
			// Registry only exits when ctx is canceled; anything else
			// means the scheduling core is gone and the daemon with it.
			d.monitor.StopMonitoring()
			return err

		case <-cleanupTicker.C:
			d.runCleanup()
		}
	}
}

func (d *Daemon) runCleanup() {
	deleted, err := d.scheduler.CleanupOldSchedules()
	if err != nil {
		d.logger.Warn("schedule cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		d.logger.Info("schedule cleanup completed", zap.Int("deleted", deleted))
	}
}
