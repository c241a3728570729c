// Package worker runs the periodic maintenance jobs of the service.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// every calls fn on each tick of interval until ctx is cancelled. With
// runNow set, fn also runs once before the first tick.
func every(ctx context.Context, name string, interval time.Duration, runNow bool, fn func(context.Context)) {
	slog.Info("worker started",
		"component", "worker",
		"worker", name,
		"action", "worker_started",
		"interval", interval.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if runNow {
		fn(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", name,
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
