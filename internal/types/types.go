package types

import "time"

// MaxPoints is the largest balance a user may hold and the largest stake a
// bet may carry.
const MaxPoints = 1_000_000_000

// Difficulty grades a goal and fixes its point value.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Points returns the fixed award for the difficulty, or 0 for unknown values.
func (d Difficulty) Points() int {
	switch d {
	case DifficultyEasy:
		return 2
	case DifficultyMedium:
		return 5
	case DifficultyHard:
		return 10
	}
	return 0
}

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

// NewUser is the input for creating a user. An empty ID is generated.
type NewUser struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	UserType string `json:"userType"`
	Points   int    `json:"points"`
	Streak   int    `json:"streak"`
}

// UserUpdate carries a partial user update; nil fields are left alone.
type UserUpdate struct {
	Name     *string `json:"name,omitempty"`
	UserType *string `json:"userType,omitempty"`
	Points   *int    `json:"points,omitempty"`
	Streak   *int    `json:"streak,omitempty"`
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

// GoalUpdate carries a partial goal update. Lifecycle status is changed only
// through settlement.
type GoalUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	Frequency   *Frequency  `json:"frequency,omitempty"`
	Difficulty  *Difficulty `json:"difficulty,omitempty"`
	IsPublic    *bool       `json:"isPublic,omitempty"`
}

// NewBet is the input for placing a bet.
type NewBet struct {
	UserID  string  `json:"userId"`
	BetType BetType `json:"betType"`
	Amount  int     `json:"amount"`
}

// Outcome names how a goal was settled.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeIncomplete Outcome = "incomplete"
)

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

// CompleteRequest is the optional body of a completion request.
type CompleteRequest struct {
	EvidenceURL string `json:"evidenceUrl,omitempty"`
}

// VisibilityRequest toggles whether a goal is public.
type VisibilityRequest struct {
	IsPublic bool `json:"isPublic"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Users     int64  `json:"users"`
	Goals     int64  `json:"goals"`
	LatestSeq int64  `json:"latestSeq"`
}

// SnapshotResponse points at the latest uploaded snapshot.
type SnapshotResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
