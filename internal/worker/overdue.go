package worker

import (
	"context"
	"log/slog"
	"time"
)

// OverdueSettler fails pending one-off goals whose due date has passed.
type OverdueSettler interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// OverdueSweeper settles overdue goals on an interval. The first sweep runs
// on start so goals that expired while the server was down are caught up.
type OverdueSweeper struct {
	settler  OverdueSettler
	interval time.Duration
}

// NewOverdueSweeper creates an overdue sweeper.
func NewOverdueSweeper(settler OverdueSettler, interval time.Duration) *OverdueSweeper {
	return &OverdueSweeper{settler: settler, interval: interval}
}

// Run blocks until ctx is cancelled.
func (w *OverdueSweeper) Run(ctx context.Context) {
	every(ctx, "overdue-sweeper", w.interval, true, w.sweep)
}

func (w *OverdueSweeper) sweep(ctx context.Context) {
	failed, err := w.settler.SweepOverdue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("overdue sweep failed",
			"component", "worker",
			"worker", "overdue-sweeper",
			"action", "sweep_failed",
			"settled", failed,
			"error", err,
		)
		return
	}
	if failed > 0 {
		slog.Info("overdue goals settled",
			"component", "worker",
			"worker", "overdue-sweeper",
			"action", "sweep_complete",
			"settled", failed,
		)
	}
}
