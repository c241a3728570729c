package validation

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/procasteam/procas/internal/types"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	var verrs Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %v is not validation.Errors", err)
	}
	out := make([]string, len(verrs))
	for i, e := range verrs {
		out[i] = e.Field
	}
	return out
}

func TestValidateNewGoal(t *testing.T) {
	now := time.Date(2025, 7, 28, 10, 0, 0, 0, time.UTC)
	valid := types.NewGoal{
		UserID:     "u1",
		Title:      "Study",
		DueDate:    now.Add(24 * time.Hour),
		Frequency:  types.FrequencyOnce,
		Difficulty: types.DifficultyMedium,
	}

	if err := ValidateNewGoal(valid, now); err != nil {
		t.Fatalf("valid goal rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*types.NewGoal)
		field  string
	}{
		{"empty title", func(g *types.NewGoal) { g.Title = "  " }, "title"},
		{"past due date", func(g *types.NewGoal) { g.DueDate = now.Add(-time.Minute) }, "dueDate"},
		{"missing due date", func(g *types.NewGoal) { g.DueDate = time.Time{} }, "dueDate"},
		{"bad difficulty", func(g *types.NewGoal) { g.Difficulty = "extreme" }, "difficulty"},
		{"bad frequency", func(g *types.NewGoal) { g.Frequency = "hourly" }, "frequency"},
		{"missing owner", func(g *types.NewGoal) { g.UserID = "" }, "userId"},
		{"long title", func(g *types.NewGoal) { g.Title = strings.Repeat("x", maxTitleLength+1) }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			got := fields(t, ValidateNewGoal(g, now))
			if len(got) != 1 || got[0] != tt.field {
				t.Errorf("fields = %v, want [%s]", got, tt.field)
			}
		})
	}
}

func TestValidateNewBet(t *testing.T) {
	if err := ValidateNewBet(types.NewBet{UserID: "u2", BetType: types.BetAgainst, Amount: 20}); err != nil {
		t.Fatalf("valid bet rejected: %v", err)
	}

	got := fields(t, ValidateNewBet(types.NewBet{UserID: "", BetType: "maybe", Amount: 0}))
	want := []string{"userId", "betType", "amount"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("fields = %v, want %v", got, want)
	}

	got = fields(t, ValidateNewBet(types.NewBet{UserID: "u2", BetType: types.BetFor, Amount: math.MaxInt}))
	if strings.Join(got, ",") != "amount" {
		t.Errorf("oversized stake fields = %v, want [amount]", got)
	}
}

func TestValidateNewUser(t *testing.T) {
	if err := ValidateNewUser(types.NewUser{Name: "Ana", UserType: "student"}); err != nil {
		t.Fatalf("valid user rejected: %v", err)
	}
	got := fields(t, ValidateNewUser(types.NewUser{Name: "", Points: -1}))
	if strings.Join(got, ",") != "name,points" {
		t.Errorf("fields = %v", got)
	}

	if err := ValidateNewUser(types.NewUser{Name: "Ana", Points: types.MaxPoints}); err != nil {
		t.Errorf("user at the points ceiling rejected: %v", err)
	}
	got = fields(t, ValidateNewUser(types.NewUser{Name: "Ana", Points: types.MaxPoints + 1}))
	if strings.Join(got, ",") != "points" {
		t.Errorf("fields = %v, want [points]", got)
	}
}

func TestValidateUpdates_OnlyPresentFields(t *testing.T) {
	now := time.Now()
	if err := ValidateUserUpdate(types.UserUpdate{}); err != nil {
		t.Errorf("empty user update rejected: %v", err)
	}
	if err := ValidateGoalUpdate(types.GoalUpdate{}, now); err != nil {
		t.Errorf("empty goal update rejected: %v", err)
	}

	empty := ""
	past := now.Add(-time.Hour)
	got := fields(t, ValidateGoalUpdate(types.GoalUpdate{Title: &empty, DueDate: &past}, now))
	if strings.Join(got, ",") != "title,dueDate" {
		t.Errorf("fields = %v", got)
	}

	negative := -3
	got = fields(t, ValidateUserUpdate(types.UserUpdate{Streak: &negative}))
	if strings.Join(got, ",") != "streak" {
		t.Errorf("fields = %v", got)
	}

	huge := math.MaxInt - 1
	got = fields(t, ValidateUserUpdate(types.UserUpdate{Points: &huge}))
	if strings.Join(got, ",") != "points" {
		t.Errorf("fields = %v, want [points]", got)
	}
}
