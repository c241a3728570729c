package validation

import (
	"time"

	"github.com/procasteam/procas/internal/types"
)

const (
	maxNameLength        = 100
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

var (
	frequencies  = []string{string(types.FrequencyOnce), string(types.FrequencyDaily), string(types.FrequencyWeekly)}
	difficulties = []string{string(types.DifficultyEasy), string(types.DifficultyMedium), string(types.DifficultyHard)}
	betTypes     = []string{string(types.BetFor), string(types.BetAgainst)}
)

func validateText(c *Collector, field, value string, max int) {
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

// ValidateNewUser checks a user creation request.
func ValidateNewUser(u types.NewUser) error {
	var c Collector
	c.Add(ValidateRequired("name", u.Name))
	validateText(&c, "name", u.Name, maxNameLength)
	validateText(&c, "userType", u.UserType, maxNameLength)
	c.Add(ValidateNonNegative("points", u.Points))
	c.Add(ValidateAtMost("points", u.Points, types.MaxPoints))
	c.Add(ValidateNonNegative("streak", u.Streak))
	return c.Err()
}

// ValidateUserUpdate checks the fields present in a partial user update.
func ValidateUserUpdate(u types.UserUpdate) error {
	var c Collector
	if u.Name != nil {
		c.Add(ValidateRequired("name", *u.Name))
		validateText(&c, "name", *u.Name, maxNameLength)
	}
	if u.UserType != nil {
		validateText(&c, "userType", *u.UserType, maxNameLength)
	}
	if u.Points != nil {
		c.Add(ValidateAtMost("points", *u.Points, types.MaxPoints))
	}
	if u.Streak != nil {
		c.Add(ValidateNonNegative("streak", *u.Streak))
	}
	return c.Err()
}

// ValidateNewGoal checks a goal creation request. The due date must not be
// before now.
func ValidateNewGoal(g types.NewGoal, now time.Time) error {
	var c Collector
	c.Add(ValidateRequired("userId", g.UserID))
	c.Add(ValidateRequired("title", g.Title))
	validateText(&c, "title", g.Title, maxTitleLength)
	validateText(&c, "description", g.Description, maxDescriptionLength)
	c.Add(validateDueDate(g.DueDate, now))
	c.Add(ValidateEnum("frequency", string(g.Frequency), frequencies))
	c.Add(ValidateEnum("difficulty", string(g.Difficulty), difficulties))
	return c.Err()
}

// ValidateGoalUpdate checks the fields present in a partial goal update.
func ValidateGoalUpdate(u types.GoalUpdate, now time.Time) error {
	var c Collector
	if u.Title != nil {
		c.Add(ValidateRequired("title", *u.Title))
		validateText(&c, "title", *u.Title, maxTitleLength)
	}
	if u.Description != nil {
		validateText(&c, "description", *u.Description, maxDescriptionLength)
	}
	if u.DueDate != nil {
		c.Add(validateDueDate(*u.DueDate, now))
	}
	if u.Frequency != nil {
		c.Add(ValidateEnum("frequency", string(*u.Frequency), frequencies))
	}
	if u.Difficulty != nil {
		c.Add(ValidateEnum("difficulty", string(*u.Difficulty), difficulties))
	}
	return c.Err()
}

// ValidateNewBet checks a bet request.
func ValidateNewBet(b types.NewBet) error {
	var c Collector
	c.Add(ValidateRequired("userId", b.UserID))
	c.Add(ValidateEnum("betType", string(b.BetType), betTypes))
	c.Add(ValidatePositive("amount", b.Amount))
	c.Add(ValidateAtMost("amount", b.Amount, types.MaxPoints))
	return c.Err()
}

func validateDueDate(due, now time.Time) *ValidationError {
	if due.IsZero() {
		return &ValidationError{Field: "dueDate", Message: "is required"}
	}
	if due.Before(now) {
		return &ValidationError{Field: "dueDate", Message: "must not be in the past"}
	}
	return nil
}
