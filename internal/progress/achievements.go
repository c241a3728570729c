package progress

import "github.com/procasteam/procas/internal/types"

// Category groups achievements.
type Category string

const (
	CategoryFirstSteps  Category = "firstSteps"
	CategoryStreaks     Category = "streaks"
	CategoryPoints      Category = "points"
	CategorySocial      Category = "social"
	CategoryConsistency Category = "consistency"
)

// Rarity grades how hard an achievement is.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Achievement is a badge and whether the user has earned it.
type Achievement struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Rarity      Rarity   `json:"rarity"`
	Unlocked    bool     `json:"unlocked"`
}

type achievementRule struct {
	Achievement
	unlocked func(u types.User, s Statistics) bool
}

var achievementRules = []achievementRule{
	{Achievement{ID: "first-goal", Title: "Primera Meta", Description: "Completaste tu primera meta", Category: CategoryFirstSteps, Rarity: RarityCommon},
		func(_ types.User, s Statistics) bool { return s.CompletedGoals >= 1 }},
	{Achievement{ID: "first-week", Title: "Primera Semana", Description: "Mantuviste una racha de 7 días", Category: CategoryFirstSteps, Rarity: RarityCommon},
		func(_ types.User, s Statistics) bool { return s.CurrentStreak >= 7 }},
	{Achievement{ID: "social-start", Title: "Primer Amigo", Description: "Completaste tu primera meta pública", Category: CategoryFirstSteps, Rarity: RarityCommon},
		func(_ types.User, s Statistics) bool { return s.PublicCompleted >= 1 }},

	{Achievement{ID: "streak-7", Title: "Semana Perfecta", Description: "Racha de 7 días consecutivos", Category: CategoryStreaks, Rarity: RarityUncommon},
		func(_ types.User, s Statistics) bool { return s.CurrentStreak >= 7 }},
	{Achievement{ID: "streak-15", Title: "Quincenal Imparable", Description: "Racha de 15 días consecutivos", Category: CategoryStreaks, Rarity: RarityRare},
		func(_ types.User, s Statistics) bool { return s.CurrentStreak >= 15 }},
	{Achievement{ID: "streak-30", Title: "Mes Legendario", Description: "Racha de 30 días consecutivos", Category: CategoryStreaks, Rarity: RarityEpic},
		func(_ types.User, s Statistics) bool { return s.CurrentStreak >= 30 }},

	{Achievement{ID: "points-100", Title: "Centenario", Description: "Acumula 100 puntos", Category: CategoryPoints, Rarity: RarityCommon},
		func(u types.User, _ Statistics) bool { return u.Points >= 100 }},
	{Achievement{ID: "points-500", Title: "Medio Millón", Description: "Acumula 500 puntos", Category: CategoryPoints, Rarity: RarityUncommon},
		func(u types.User, _ Statistics) bool { return u.Points >= 500 }},
	{Achievement{ID: "points-1000", Title: "Millar Dorado", Description: "Acumula 1000 puntos", Category: CategoryPoints, Rarity: RarityRare},
		func(u types.User, _ Statistics) bool { return u.Points >= 1000 }},

	{Achievement{ID: "social-butterfly", Title: "Mariposa Social", Description: "Completa 3 metas públicas", Category: CategorySocial, Rarity: RarityUncommon},
		func(_ types.User, s Statistics) bool { return s.PublicCompleted >= 3 }},
	{Achievement{ID: "influencer", Title: "Influencer", Description: "Completa 10 metas públicas", Category: CategorySocial, Rarity: RarityRare},
		func(_ types.User, s Statistics) bool { return s.PublicCompleted >= 10 }},

	{Achievement{ID: "perfectionist", Title: "Perfeccionista", Description: "100% de tasa de éxito con 5+ metas", Category: CategoryConsistency, Rarity: RarityEpic},
		func(_ types.User, s Statistics) bool { return s.SuccessRate == 100 && s.TotalGoals >= 5 }},
	{Achievement{ID: "unstoppable", Title: "Imparable", Description: "Completa 20 metas", Category: CategoryConsistency, Rarity: RarityLegendary},
		func(_ types.User, s Statistics) bool { return s.CompletedGoals >= 20 }},
}

// Achievements evaluates every achievement for user.
func Achievements(user types.User, s Statistics) []Achievement {
	out := make([]Achievement, len(achievementRules))
	for i, rule := range achievementRules {
		out[i] = rule.Achievement
		out[i].Unlocked = rule.unlocked(user, s)
	}
	return out
}

// UnlockedCount returns how many achievements are unlocked.
func UnlockedCount(achievements []Achievement) int {
	n := 0
	for _, a := range achievements {
		if a.Unlocked {
			n++
		}
	}
	return n
}
