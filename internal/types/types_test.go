package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDifficulty_Points(t *testing.T) {
	tests := []struct {
		d    Difficulty
		want int
	}{
		{DifficultyEasy, 2},
		{DifficultyMedium, 5},
		{DifficultyHard, 10},
		{Difficulty("legendary"), 0},
	}
	for _, tt := range tests {
		if got := tt.d.Points(); got != tt.want {
			t.Errorf("%s.Points() = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestGoal_JSONRoundTrip(t *testing.T) {
	due := time.Date(2025, 7, 29, 0, 43, 0, 0, time.UTC)
	done := due.Add(-time.Hour)

	tests := []struct {
		name   string
		status GoalStatus
	}{
		{"pending", Pending{}},
		{"completed", Completed{At: done, EvidenceURL: "https://img/1.jpg"}},
		{"incomplete", Incomplete{At: done}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Goal{
				ID:         "g1",
				UserID:     "u1",
				Title:      "Run",
				DueDate:    due,
				Frequency:  FrequencyOnce,
				Difficulty: DifficultyHard,
				Points:     10,
				IsPublic:   true,
				Status:     tt.status,
				CreatedAt:  due.Add(-48 * time.Hour),
				Bets:       []Bet{{UserID: "u2", BetType: BetFor, Amount: 20, PlacedAt: due}},
			}
			data, err := json.Marshal(g)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var got Goal
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.Status != tt.status {
				t.Errorf("Status = %#v, want %#v", got.Status, tt.status)
			}
			if got.ID != g.ID || got.Points != 10 || !got.IsPublic || len(got.Bets) != 1 {
				t.Errorf("round trip = %+v", got)
			}
		})
	}
}

func TestGoal_StoredShapeUsesFlags(t *testing.T) {
	g := Goal{ID: "g1", Status: Completed{At: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["isCompleted"] != true || raw["isIncomplete"] != false {
		t.Errorf("flags = %v / %v", raw["isCompleted"], raw["isIncomplete"])
	}
	if raw["status"] != "completed" {
		t.Errorf("status = %v", raw["status"])
	}
	if _, ok := raw["completedAt"]; !ok {
		t.Error("completedAt missing")
	}
	if bets, ok := raw["bets"].([]any); !ok || len(bets) != 0 {
		t.Errorf("bets = %v, want empty array", raw["bets"])
	}
}

func TestGoal_LegacyDocument(t *testing.T) {
	// Documents written without status or bets decode as pending with no bets.
	data := `{"id":"g1","userId":"u1","title":"Read","dueDate":"2025-07-29T00:43:00.000Z","frequency":"daily","difficulty":"easy","points":2,"isPublic":false,"isCompleted":false,"createdAt":"2025-07-28T10:00:00.000Z"}`

	var g Goal
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !g.IsPending() {
		t.Errorf("Status = %#v, want pending", g.Status)
	}
	if len(g.Bets) != 0 {
		t.Errorf("Bets = %v", g.Bets)
	}
}

func TestGoal_ConflictingFlagsRejected(t *testing.T) {
	var g Goal
	err := json.Unmarshal([]byte(`{"id":"g1","isCompleted":true,"isIncomplete":true}`), &g)
	if !errors.Is(err, ErrConflictingStatus) {
		t.Errorf("error = %v, want ErrConflictingStatus", err)
	}
}

func TestUser_JSONKeys(t *testing.T) {
	data, err := json.Marshal(User{ID: "u1", Name: "Ana", UserType: "student", Points: 5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"id"`, `"userType"`, `"points"`, `"streak"`, `"joinedAt"`, `"lastActive"`, `"incompleteGoals"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("missing key %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), "lastChallengeOn") {
		t.Errorf("empty lastChallengeOn should be omitted: %s", data)
	}
}

func TestStatusName(t *testing.T) {
	if StatusName(nil) != "pending" || StatusName(Incomplete{}) != "incomplete" {
		t.Error("unexpected status names")
	}
}
