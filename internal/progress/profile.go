package progress

import (
	"time"

	"github.com/procasteam/procas/internal/types"
)

// Profile is everything shown about one user.
type Profile struct {
	User         types.User    `json:"user"`
	Level        LevelProgress `json:"level"`
	Stats        Statistics    `json:"stats"`
	Achievements []Achievement `json:"achievements"`
	Unlocked     int           `json:"unlocked"`
	Rank         RankInfo      `json:"rank"`
}

// BuildProfile assembles a profile from the user's goals and the full user list.
func BuildProfile(user types.User, goals []types.Goal, users []types.User, now time.Time) Profile {
	stats := Stats(user, goals, now)
	achievements := Achievements(user, stats)
	return Profile{
		User:         user,
		Level:        LevelFor(user.Points),
		Stats:        stats,
		Achievements: achievements,
		Unlocked:     UnlockedCount(achievements),
		Rank:         Rank(users, user.ID),
	}
}
