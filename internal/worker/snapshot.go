package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/procasteam/procas/internal/snapshot"
)

// SnapshotStore writes a consistent copy of the database to a file.
type SnapshotStore interface {
	Backup(ctx context.Context, dest string) error
}

// SnapshotWorker takes a database snapshot on start and then on every
// interval, uploading it when an uploader is configured.
type SnapshotWorker struct {
	store    SnapshotStore
	uploader snapshot.Uploader
	path     string
	interval time.Duration
}

// NewSnapshotWorker creates a worker writing snapshots to path. uploader may be nil.
func NewSnapshotWorker(store SnapshotStore, uploader snapshot.Uploader, path string, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		store:    store,
		uploader: uploader,
		path:     path,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	every(ctx, "snapshot", w.interval, true, w.generate)
}

func (w *SnapshotWorker) generate(ctx context.Context) {
	start := time.Now()
	if err := w.store.Backup(ctx, w.path); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"worker", "snapshot",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}

	slog.Info("snapshot generated",
		"component", "worker",
		"worker", "snapshot",
		"action", "snapshot_complete",
		"path", w.path,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if w.uploader == nil {
		return
	}
	// The local snapshot stays valid when the upload fails.
	if err := w.uploader.Upload(ctx, w.path); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot upload to S3 failed",
			"component", "worker",
			"worker", "snapshot",
			"action", "snapshot_upload_failed",
			"error", err,
		)
	}
}
