// Command worker runs the platform's background jobs: the account
// inactivity sweeper (spec.md §4.1's state machine) and the async-task
// registry's terminal-entry cleaner (spec.md §5). Change propagation
// itself (spec.md §4.6) runs synchronously inside request handlers via
// internal/propagator.Propagator.Drain, not as a worker loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideal-world/bios/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.Load()
	if err != nil {
		panic(err)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer app.Close()

	if err := app.Sweeper.Start(ctx, app.Logger, cfg.SweeperCron); err != nil {
		app.Logger.Fatalf("worker: start sweeper: %v", err)
	}
	defer app.Sweeper.Stop()

	app.Logger.Infof("worker: started, sweeper cron %q", cfg.SweeperCron)

	app.TaskRegistry.RunCleaner(ctx,
		time.Duration(cfg.TaskCleanerIntervalSec)*time.Second,
		time.Duration(cfg.TaskCleanerRetentionSec)*time.Second,
	)

	app.Logger.Infof("worker: shutting down")
}
