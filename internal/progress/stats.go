package progress

import (
	"math"
	"time"

	"github.com/procasteam/procas/internal/types"
)

// Statistics summarizes a user's goals.
type Statistics struct {
	TotalGoals            int     `json:"totalGoals"`
	CompletedGoals        int     `json:"completedGoals"`
	IncompleteGoals       int     `json:"incompleteGoals"`
	PendingGoals          int     `json:"pendingGoals"`
	SuccessRate           int     `json:"successRate"`
	CurrentStreak         int     `json:"currentStreak"`
	LongestStreak         int     `json:"longestStreak"`
	WeekPoints            int     `json:"weekPoints"`
	MonthPoints           int     `json:"monthPoints"`
	PublicGoals           int     `json:"publicGoals"`
	PublicCompleted       int     `json:"publicCompleted"`
	AverageCompletionDays float64 `json:"averageCompletionDays"`
}

// Stats computes statistics over goals, which should all belong to user.
// Weeks start on Sunday in now's location.
func Stats(user types.User, goals []types.Goal, now time.Time) Statistics {
	y, m, d := now.Date()
	weekStart := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())

	s := Statistics{
		TotalGoals:    len(goals),
		CurrentStreak: user.Streak,
		LongestStreak: max(user.LongestStreak, user.Streak),
	}

	var completionDays float64
	for i := range goals {
		g := &goals[i]
		if g.IsPublic {
			s.PublicGoals++
		}

		switch st := g.Status.(type) {
		case types.Completed:
			s.CompletedGoals++
			if g.IsPublic {
				s.PublicCompleted++
			}
			if !st.At.Before(weekStart) {
				s.WeekPoints += g.Points
			}
			if !st.At.Before(monthStart) {
				s.MonthPoints += g.Points
			}
			completionDays += st.At.Sub(g.CreatedAt).Hours() / 24
		case types.Incomplete:
			s.IncompleteGoals++
		default:
			s.PendingGoals++
		}
	}

	if s.TotalGoals > 0 {
		s.SuccessRate = int(math.Round(float64(s.CompletedGoals) / float64(s.TotalGoals) * 100))
	}
	if s.CompletedGoals > 0 {
		s.AverageCompletionDays = math.Round(completionDays/float64(s.CompletedGoals)*10) / 10
	}
	return s
}
