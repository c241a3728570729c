package progress

import (
	"math"
	"sort"

	"github.com/procasteam/procas/internal/types"
)

// RankInfo is a user's place among all users by points.
type RankInfo struct {
	Position   int `json:"position"`
	Total      int `json:"total"`
	Percentile int `json:"percentile"`
}

// Outranks reports whether a places above b: more points first, then the
// smaller id. Every ranking in the system orders users this way.
func Outranks(a, b types.User) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	return a.ID < b.ID
}

// Rank orders users with Outranks and locates userID. Position is 0 when
// the user is not in the list.
func Rank(users []types.User, userID string) RankInfo {
	sorted := make([]types.User, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return Outranks(sorted[i], sorted[j]) })

	info := RankInfo{Total: len(sorted)}
	for i, u := range sorted {
		if u.ID == userID {
			info.Position = i + 1
			break
		}
	}
	if info.Position > 0 {
		frac := 1 - float64(info.Position-1)/float64(info.Total)
		info.Percentile = int(math.Round(frac * 100))
	}
	return info
}
