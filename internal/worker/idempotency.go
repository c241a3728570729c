package worker

import (
	"context"
	"log/slog"
	"time"
)

// IdempotencyStore removes expired idempotency records.
type IdempotencyStore interface {
	CleanExpiredIdempotency(ctx context.Context) (int64, error)
}

// IdempotencySweeper periodically drops expired idempotency records.
type IdempotencySweeper struct {
	store    IdempotencyStore
	interval time.Duration
}

// NewIdempotencySweeper creates an idempotency sweeper.
func NewIdempotencySweeper(store IdempotencyStore, interval time.Duration) *IdempotencySweeper {
	return &IdempotencySweeper{store: store, interval: interval}
}

// Run blocks until ctx is cancelled.
func (w *IdempotencySweeper) Run(ctx context.Context) {
	every(ctx, "idempotency-sweeper", w.interval, false, w.sweep)
}

func (w *IdempotencySweeper) sweep(ctx context.Context) {
	removed, err := w.store.CleanExpiredIdempotency(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("idempotency sweep failed",
			"component", "worker",
			"worker", "idempotency-sweeper",
			"action", "sweep_failed",
			"error", err,
		)
		return
	}
	if removed > 0 {
		slog.Info("expired idempotency records removed",
			"component", "worker",
			"worker", "idempotency-sweeper",
			"action", "sweep_complete",
			"removed", removed,
		)
	}
}
