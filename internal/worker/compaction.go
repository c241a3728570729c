package worker

import (
	"context"
	"log/slog"
	"time"
)

// ChangeLogCompactor deletes change log entries older than cutoff.
type ChangeLogCompactor interface {
	Compact(ctx context.Context, cutoff time.Time) (int64, error)
}

// CompactionWorker trims the change log to the retention window.
//
// It waits for the first tick before compacting so startup stays quiet.
type CompactionWorker struct {
	store     ChangeLogCompactor
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewCompactionWorker creates a compaction worker.
func NewCompactionWorker(store ChangeLogCompactor, interval, retention time.Duration) *CompactionWorker {
	return &CompactionWorker{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (w *CompactionWorker) Run(ctx context.Context) {
	every(ctx, "compaction", w.interval, false, w.compact)
}

func (w *CompactionWorker) compact(ctx context.Context) {
	start := w.now()
	cutoff := start.Add(-w.retention)

	deleted, err := w.store.Compact(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("change log compaction failed",
			"component", "worker",
			"worker", "compaction",
			"action", "compaction_failed",
			"error", err,
		)
		return
	}

	if deleted == 0 {
		slog.Debug("no change log entries to compact",
			"component", "worker",
			"worker", "compaction",
		)
		return
	}

	slog.Info("change log compacted",
		"component", "worker",
		"worker", "compaction",
		"action", "compaction_complete",
		"cutoff", cutoff,
		"entries_deleted", deleted,
	)
}
