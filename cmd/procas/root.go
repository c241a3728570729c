package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/procasteam/procas/internal/api"
	"github.com/procasteam/procas/internal/config"
	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/leaderboard"
	"github.com/procasteam/procas/internal/records"
	"github.com/procasteam/procas/internal/settlement"
	"github.com/procasteam/procas/internal/snapshot"
	"github.com/procasteam/procas/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "procas",
	Short:        "Procas - goals, points and bets for study groups",
	SilenceUsage: true,
	RunE:         run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "procas %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(goalsCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	store, err := docstore.Open(cfg.Database.Path, docstore.Options{
		MaxRetries: uint64(max(cfg.Settlement.TxMaxRetries, 0)),
		RetryBase:  time.Duration(cfg.Settlement.TxRetryBase),
	})
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	users := records.NewUsers(store)
	goals := records.NewGoals(store)
	settler := settlement.NewService(store, users, goals)

	ranker, closeRanker := newRanker(ctx, cfg.Leaderboard)
	slog.Info("leaderboard initialized", "backend", rankerBackend(ranker))

	uploader, err := snapshot.NewUploader(cfg.SnapshotStorage)
	if err != nil {
		store.Close()
		return err
	}

	handler := api.NewHandler(api.Deps{
		Store:          store,
		Users:          users,
		Goals:          goals,
		Settlement:     settler,
		Ranker:         ranker,
		Uploader:       uploader,
		APIKey:         cfg.Auth.APIKey,
		Version:        Version,
		IdempotencyTTL: time.Duration(cfg.Settlement.IdempotencyTTL),
	})
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	startWorker(ctx, &wg, "leaderboard", leaderboard.NewTracker(users, ranker).Run)

	wc := cfg.Worker
	if wc.SnapshotInterval > 0 {
		snapshotPath := filepath.Join(filepath.Dir(cfg.Database.Path), "snapshots", "current.db")
		startWorker(ctx, &wg, "snapshot",
			worker.NewSnapshotWorker(store, uploader, snapshotPath, time.Duration(wc.SnapshotInterval)).Run)
	}
	if wc.CompactionInterval > 0 {
		startWorker(ctx, &wg, "compaction",
			worker.NewCompactionWorker(store, time.Duration(wc.CompactionInterval), time.Duration(wc.ChangeRetention)).Run)
	}
	if wc.IdempotencySweepInterval > 0 {
		startWorker(ctx, &wg, "idempotency-sweep",
			worker.NewIdempotencySweeper(store, time.Duration(wc.IdempotencySweepInterval)).Run)
	}
	if wc.OverdueInterval > 0 {
		startWorker(ctx, &wg, "overdue-sweep",
			worker.NewOverdueSweeper(settler, time.Duration(wc.OverdueInterval)).Run)
	}

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	wg.Wait()

	if err := closeRanker(); err != nil {
		slog.Error("leaderboard close error", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newRanker connects to Redis when an address is configured. An unreachable
// Redis falls back to the in-memory ranking so the API still serves.
func newRanker(ctx context.Context, cfg config.LeaderboardConfig) (leaderboard.Ranker, func() error) {
	noop := func() error { return nil }
	if cfg.RedisAddr == "" {
		return leaderboard.NewMemoryRanker(), noop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unreachable, using in-memory leaderboard",
			"component", "leaderboard",
			"addr", cfg.RedisAddr,
			"error", err,
		)
		client.Close()
		return leaderboard.NewMemoryRanker(), noop
	}

	r := leaderboard.NewRedisRanker(client, cfg.KeyPrefix)
	return r, r.Close
}

func rankerBackend(r leaderboard.Ranker) string {
	if _, ok := r.(*leaderboard.RedisRanker); ok {
		return "redis"
	}
	return "memory"
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
