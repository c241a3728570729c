package types

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrConflictingStatus is returned when a stored goal claims to be both
// completed and incomplete.
var ErrConflictingStatus = errors.New("goal is both completed and incomplete")

// GoalStatus is the lifecycle state of a goal: Pending, Completed or
// Incomplete. There is no way back to Pending once settled.
type GoalStatus interface {
	statusName() string
}

// Pending goals have not been settled yet.
type Pending struct{}

// Completed goals were achieved at At, optionally with evidence.
type Completed struct {
	At          time.Time
	EvidenceURL string
}

// Incomplete goals were failed at At.
type Incomplete struct {
	At time.Time
}

func (Pending) statusName() string    { return "pending" }
func (Completed) statusName() string  { return "completed" }
func (Incomplete) statusName() string { return "incomplete" }

// StatusName returns "pending", "completed" or "incomplete".
func StatusName(s GoalStatus) string {
	if s == nil {
		return Pending{}.statusName()
	}
	return s.statusName()
}

// Goal is a commitment owned by a user.
type Goal struct {
	ID          string
	UserID      string
	Title       string
	Description string
	DueDate     time.Time
	Frequency   Frequency
	Difficulty  Difficulty
	Points      int
	IsPublic    bool
	Status      GoalStatus
	CreatedAt   time.Time
	LastUpdated *time.Time
	Bets        []Bet
}

// IsPending reports whether the goal is still open for settlement and bets.
func (g *Goal) IsPending() bool {
	switch g.Status.(type) {
	case nil, Pending:
		return true
	}
	return false
}

// goalDocument is the stored shape of a goal: flat status flags rather than
// a tagged variant.
type goalDocument struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DueDate      time.Time  `json:"dueDate"`
	Frequency    Frequency  `json:"frequency"`
	Difficulty   Difficulty `json:"difficulty"`
	Points       int        `json:"points"`
	IsPublic     bool       `json:"isPublic"`
	Status       string     `json:"status,omitempty"`
	IsCompleted  bool       `json:"isCompleted"`
	IsIncomplete bool       `json:"isIncomplete"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	IncompleteAt *time.Time `json:"incompleteAt,omitempty"`
	EvidenceURL  string     `json:"evidenceUrl,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUpdated  *time.Time `json:"lastUpdated,omitempty"`
	Bets         []Bet      `json:"bets"`
}

// MarshalJSON writes the stored document shape.
func (g Goal) MarshalJSON() ([]byte, error) {
	doc := goalDocument{
		ID:          g.ID,
		UserID:      g.UserID,
		Title:       g.Title,
		Description: g.Description,
		DueDate:     g.DueDate,
		Frequency:   g.Frequency,
		Difficulty:  g.Difficulty,
		Points:      g.Points,
		IsPublic:    g.IsPublic,
		Status:      StatusName(g.Status),
		CreatedAt:   g.CreatedAt,
		LastUpdated: g.LastUpdated,
		Bets:        g.Bets,
	}
	if doc.Bets == nil {
		doc.Bets = []Bet{}
	}

	switch st := g.Status.(type) {
	case Completed:
		at := st.At
		doc.IsCompleted = true
		doc.CompletedAt = &at
		doc.EvidenceURL = st.EvidenceURL
	case Incomplete:
		at := st.At
		doc.IsIncomplete = true
		doc.IncompleteAt = &at
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the stored document shape. Documents that set both
// status flags are rejected.
func (g *Goal) UnmarshalJSON(data []byte) error {
	var doc goalDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.IsCompleted && doc.IsIncomplete {
		return ErrConflictingStatus
	}

	*g = Goal{
		ID:          doc.ID,
		UserID:      doc.UserID,
		Title:       doc.Title,
		Description: doc.Description,
		DueDate:     doc.DueDate,
		Frequency:   doc.Frequency,
		Difficulty:  doc.Difficulty,
		Points:      doc.Points,
		IsPublic:    doc.IsPublic,
		Status:      Pending{},
		CreatedAt:   doc.CreatedAt,
		LastUpdated: doc.LastUpdated,
		Bets:        doc.Bets,
	}

	switch {
	case doc.IsCompleted:
		st := Completed{EvidenceURL: doc.EvidenceURL}
		if doc.CompletedAt != nil {
			st.At = *doc.CompletedAt
		}
		g.Status = st
	case doc.IsIncomplete:
		st := Incomplete{}
		if doc.IncompleteAt != nil {
			st.At = *doc.IncompleteAt
		}
		g.Status = st
	}
	return nil
}
