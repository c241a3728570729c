package progress

import (
	"time"

	"github.com/procasteam/procas/internal/types"
)

const dayLayout = "2006-01-02"

// AdvanceStreak records a completion on now's calendar day. A second
// completion the same day changes nothing, a completion the day after the
// last one extends the streak and anything else restarts it at 1.
func AdvanceStreak(u *types.User, now time.Time) {
	today := now.Format(dayLayout)
	if u.LastCompletedOn == today {
		return
	}

	yesterday := now.AddDate(0, 0, -1).Format(dayLayout)
	if u.LastCompletedOn == yesterday {
		u.Streak++
	} else {
		u.Streak = 1
	}
	u.LastCompletedOn = today
	if u.Streak > u.LongestStreak {
		u.LongestStreak = u.Streak
	}
}

// DayKey formats t as a calendar day in its own location.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}
