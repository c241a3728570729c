package procas

import (
	"encoding/json"
	"time"
)

// Difficulty grades a goal. The server derives the goal's points from it.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Frequency is how often a goal recurs.
type Frequency string

const (
	FrequencyOnce   Frequency = "once"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// BetType is the side a bettor takes on a public goal.
type BetType string

const (
	BetFor     BetType = "for"
	BetAgainst BetType = "against"
)

// Outcome names how a goal was settled.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeIncomplete Outcome = "incomplete"
)

// User is a participant and their point balance.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	UserType        string    `json:"userType"`
	Points          int       `json:"points"`
	Streak          int       `json:"streak"`
	LongestStreak   int       `json:"longestStreak"`
	IncompleteGoals int       `json:"incompleteGoals"`
	JoinedAt        time.Time `json:"joinedAt"`
	LastActive      time.Time `json:"lastActive"`
	LastCompletedOn string    `json:"lastCompletedOn,omitempty"`
	LastChallengeOn string    `json:"lastChallengeOn,omitempty"`
}

// Bet is a stake placed on a public goal.
type Bet struct {
	UserID   string    `json:"userId"`
	BetType  BetType   `json:"betType"`
	Amount   int       `json:"amount"`
	PlacedAt time.Time `json:"placedAt"`
}

// Goal is a goal as the server returns it. Status is "pending",
// "completed" or "incomplete".
type Goal struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DueDate      time.Time  `json:"dueDate"`
	Frequency    Frequency  `json:"frequency"`
	Difficulty   Difficulty `json:"difficulty"`
	Points       int        `json:"points"`
	IsPublic     bool       `json:"isPublic"`
	Status       string     `json:"status"`
	IsCompleted  bool       `json:"isCompleted"`
	IsIncomplete bool       `json:"isIncomplete"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	IncompleteAt *time.Time `json:"incompleteAt,omitempty"`
	EvidenceURL  string     `json:"evidenceUrl,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUpdated  *time.Time `json:"lastUpdated,omitempty"`
	Bets         []Bet      `json:"bets"`
}

// Pending reports whether the goal is still open.
func (g Goal) Pending() bool {
	return !g.IsCompleted && !g.IsIncomplete
}

// NewUser is the input for creating a user. An empty ID is generated.
type NewUser struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	UserType string `json:"userType"`
	Points   int    `json:"points"`
	Streak   int    `json:"streak"`
}

// NewGoal is the input for creating a goal.
type NewGoal struct {
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"dueDate"`
	Frequency   Frequency  `json:"frequency"`
	Difficulty  Difficulty `json:"difficulty"`
	IsPublic    bool       `json:"isPublic"`
}

// NewBet is the input for placing a bet.
type NewBet struct {
	UserID  string  `json:"userId"`
	BetType BetType `json:"betType"`
	Amount  int     `json:"amount"`
}

type completeRequest struct {
	EvidenceURL string `json:"evidenceUrl,omitempty"`
}

// Payout is the result of one bet at settlement. Paid is 0 for a lost bet.
type Payout struct {
	UserID  string  `json:"userId"`
	BetType BetType `json:"betType"`
	Amount  int     `json:"amount"`
	Paid    int     `json:"paid"`
}

// Settlement describes the effects of completing or failing a goal.
type Settlement struct {
	Goal           *Goal    `json:"goal"`
	Outcome        Outcome  `json:"outcome"`
	AlreadySettled bool     `json:"alreadySettled"`
	OwnerID        string   `json:"ownerId"`
	OwnerDelta     int      `json:"ownerDelta"`
	Payouts        []Payout `json:"payouts"`
}

// Entry is one row of the leaderboard. Rank is 1-based.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// LevelProgress places a user within the level table.
type LevelProgress struct {
	Level        int     `json:"level"`
	MinPoints    int     `json:"minPoints"`
	MaxPoints    int     `json:"maxPoints"`
	Title        string  `json:"title"`
	Progress     float64 `json:"progress"`
	PointsToNext int     `json:"pointsToNext"`
}

// Statistics summarises a user's goals.
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

// Achievement is one badge and whether the user has earned it.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Rarity      string `json:"rarity"`
	Unlocked    bool   `json:"unlocked"`
}

// RankInfo is a user's place among all users.
type RankInfo struct {
	Position   int `json:"position"`
	Total      int `json:"total"`
	Percentile int `json:"percentile"`
}

// Profile is the derived view of one user.
type Profile struct {
	User         User          `json:"user"`
	Level        LevelProgress `json:"level"`
	Stats        Statistics    `json:"stats"`
	Achievements []Achievement `json:"achievements"`
	Unlocked     int           `json:"unlocked"`
	Rank         RankInfo      `json:"rank"`
}

// Health is the server health report.
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Users     int64  `json:"users"`
	Goals     int64  `json:"goals"`
	LatestSeq int64  `json:"latestSeq"`
}

// Change is one change-log entry. Payload is the written document, absent
// for deletes.
type Change struct {
	Sequence  int64           `json:"sequence"`
	Path      string          `json:"path"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
}
