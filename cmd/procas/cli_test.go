package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/records"
	"github.com/procasteam/procas/internal/types"
)

// executeCmd runs the root command with captured output and piped stdin.
func executeCmd(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Cobra parses into package-level variables; reset them so values do
	// not leak between tests.
	dbPathOverride = ""
	jsonOutput = false
	clearForce = false
	goalsUser = ""
	goalsPublic = false

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetIn(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

// seedDB writes users and goals to a fresh database file and closes it.
func seedDB(t *testing.T, users []types.NewUser, goals []types.Goal) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procas.db")

	store, err := docstore.Open(path, docstore.Options{})
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	u := records.NewUsers(store)
	for _, nu := range users {
		if _, err := u.AddUser(ctx, nu); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
	}
	g := records.NewGoals(store)
	for _, goal := range goals {
		if _, err := g.AddGoal(ctx, goal); err != nil {
			t.Fatalf("AddGoal: %v", err)
		}
	}
	return path
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCmd(t, "", "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "procas "+Version) {
		t.Errorf("stdout = %q", stdout)
	}
}

// --- Users ---

func TestUsersList_Empty(t *testing.T) {
	db := seedDB(t, nil, nil)
	stdout, _, err := executeCmd(t, "", "users", "list", "--db", db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No users found.") {
		t.Errorf("stdout = %q, want it to contain 'No users found.'", stdout)
	}
}

func TestUsersList_SortedByPoints(t *testing.T) {
	db := seedDB(t, []types.NewUser{
		{ID: "ana", Name: "Ana", Points: 40},
		{ID: "luis", Name: "Luis", Points: 130},
		{ID: "eva", Name: "Eva", Points: 5},
	}, nil)

	stdout, _, err := executeCmd(t, "", "users", "list", "--db", db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout, "POINTS") || !strings.Contains(stdout, "LEVEL") {
		t.Errorf("stdout missing table header:\n%s", stdout)
	}
	luis := strings.Index(stdout, "luis")
	ana := strings.Index(stdout, "ana")
	eva := strings.Index(stdout, "eva")
	if luis == -1 || ana == -1 || eva == -1 || luis > ana || ana > eva {
		t.Errorf("users not sorted by points:\n%s", stdout)
	}
}

func TestUsersList_JSONOutput(t *testing.T) {
	db := seedDB(t, []types.NewUser{{ID: "ana", Name: "Ana", Points: 40}}, nil)

	stdout, _, err := executeCmd(t, "", "users", "list", "--db", db, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Users []types.User `json:"users"`
		Total int          `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, stdout)
	}
	if result.Total != 1 || result.Users[0].ID != "ana" || result.Users[0].Points != 40 {
		t.Errorf("result = %+v", result)
	}
}

func TestUsersList_TiesOrderedByID(t *testing.T) {
	db := seedDB(t, []types.NewUser{
		{ID: "zoe", Name: "Zoe", Points: 40},
		{ID: "max", Name: "Max", Points: 90},
		{ID: "bob", Name: "Bob", Points: 40},
	}, nil)

	stdout, _, err := executeCmd(t, "", "users", "list", "--db", db, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result struct {
		Users []types.User `json:"users"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	var ids []string
	for _, u := range result.Users {
		ids = append(ids, u.ID)
	}
	if strings.Join(ids, ",") != "max,bob,zoe" {
		t.Errorf("order = %v, want [max bob zoe]", ids)
	}
}

func TestUsersClear_Force(t *testing.T) {
	db := seedDB(t, []types.NewUser{{ID: "ana", Name: "Ana"}}, nil)

	stdout, _, err := executeCmd(t, "", "users", "clear", "--db", db, "--force")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Cleared all users") {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, _ = executeCmd(t, "", "users", "list", "--db", db)
	if !strings.Contains(stdout, "No users found.") {
		t.Errorf("users remain after clear:\n%s", stdout)
	}
}

func TestUsersClear_ConfirmationMismatchAborts(t *testing.T) {
	db := seedDB(t, []types.NewUser{{ID: "ana", Name: "Ana"}}, nil)

	_, stderr, err := executeCmd(t, "no\n", "users", "clear", "--db", db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Aborted.") {
		t.Errorf("stderr = %q, want it to contain 'Aborted.'", stderr)
	}

	stdout, _, _ := executeCmd(t, "", "users", "list", "--db", db)
	if !strings.Contains(stdout, "ana") {
		t.Errorf("user deleted despite aborted confirmation:\n%s", stdout)
	}
}

func TestUsersClear_Confirmed(t *testing.T) {
	db := seedDB(t, []types.NewUser{{ID: "ana", Name: "Ana"}}, nil)

	_, _, err := executeCmd(t, "clear\n", "users", "clear", "--db", db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stdout, _, _ := executeCmd(t, "", "users", "list", "--db", db)
	if !strings.Contains(stdout, "No users found.") {
		t.Errorf("users remain after confirmed clear:\n%s", stdout)
	}
}

// --- Goals ---

func TestGoalsList_Filters(t *testing.T) {
	now := time.Now().UTC()
	db := seedDB(t, nil, []types.Goal{
		{ID: "g1", UserID: "ana", Title: "Estudiar", DueDate: now.Add(time.Hour), Points: 2},
		{ID: "g2", UserID: "ana", Title: "Correr", DueDate: now.Add(time.Hour), Points: 5, IsPublic: true},
		{ID: "g3", UserID: "luis", Title: "Leer", DueDate: now.Add(time.Hour), Points: 10, IsPublic: true},
	})

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", nil, []string{"g1", "g2", "g3"}, nil},
		{"by user", []string{"--user", "luis"}, []string{"g3"}, []string{"g1", "g2"}},
		{"public", []string{"--public"}, []string{"g2", "g3"}, []string{"g1"}},
		{"public by user", []string{"--public", "--user", "ana"}, []string{"g2"}, []string{"g1", "g3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"goals", "list", "--db", db}, tt.args...)
			stdout, _, err := executeCmd(t, "", args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, id := range tt.want {
				if !strings.Contains(stdout, id) {
					t.Errorf("stdout missing %s:\n%s", id, stdout)
				}
			}
			for _, id := range tt.notWant {
				if strings.Contains(stdout, id) {
					t.Errorf("stdout contains %s:\n%s", id, stdout)
				}
			}
		})
	}
}

func TestGoalsSweep(t *testing.T) {
	now := time.Now().UTC()
	db := seedDB(t,
		[]types.NewUser{{ID: "ana", Name: "Ana", Points: 20}},
		[]types.Goal{
			{ID: "late", UserID: "ana", Title: "Late", DueDate: now.Add(-time.Hour), Frequency: types.FrequencyOnce, Points: 5, Status: types.Pending{}},
			{ID: "soon", UserID: "ana", Title: "Soon", DueDate: now.Add(time.Hour), Frequency: types.FrequencyOnce, Points: 5, Status: types.Pending{}},
		})

	stdout, _, err := executeCmd(t, "", "goals", "sweep", "--db", db, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]int
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, stdout)
	}
	if result["settled"] != 1 {
		t.Errorf("settled = %d, want 1", result["settled"])
	}

	stdout, _, _ = executeCmd(t, "", "goals", "list", "--db", db)
	if !strings.Contains(stdout, "incomplete") {
		t.Errorf("overdue goal not marked incomplete:\n%s", stdout)
	}
}
