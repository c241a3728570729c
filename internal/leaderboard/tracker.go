package leaderboard

import (
	"context"
	"log/slog"

	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/types"
)

// UserSource streams the full user list.
type UserSource interface {
	SubscribeUsers(ctx context.Context, fn func([]types.User)) (*docstore.Subscription, error)
}

// Tracker feeds every change of the user list into a Ranker.
type Tracker struct {
	users  UserSource
	ranker Ranker
}

// NewTracker returns a Tracker from users to ranker.
func NewTracker(users UserSource, ranker Ranker) *Tracker {
	return &Tracker{users: users, ranker: ranker}
}

// Run subscribes to users and blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	sub, err := t.users.SubscribeUsers(ctx, func(users []types.User) {
		if err := t.ranker.Update(ctx, users); err != nil && ctx.Err() == nil {
			slog.Warn("leaderboard update failed",
				"component", "leaderboard",
				"action", "update",
				"users", len(users),
				"error", err,
			)
		}
	})
	if err != nil {
		slog.Error("leaderboard subscription failed",
			"component", "leaderboard",
			"action", "subscribe",
			"error", err,
		)
		return
	}
	defer sub.Close()

	slog.Info("leaderboard tracker started", "component", "leaderboard", "action", "start")
	<-ctx.Done()
	slog.Info("leaderboard tracker stopped", "component", "leaderboard", "action", "stop")
}
