package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/types"
	"github.com/procasteam/procas/internal/validation"
)

var testNow = time.Date(2025, 7, 28, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *docstore.Store {
	t.Helper()
	s, err := docstore.Open(":memory:", docstore.Options{})
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUsers(t *testing.T, s *docstore.Store) *Users {
	u := NewUsers(s)
	u.now = func() time.Time { return testNow }
	return u
}

func newTestGoals(t *testing.T, s *docstore.Store) *Goals {
	g := NewGoals(s)
	g.now = func() time.Time { return testNow }
	return g
}

func TestUsers_AddAndGet(t *testing.T) {
	s := newTestStore(t)
	users := newTestUsers(t, s)
	ctx := context.Background()

	added, err := users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana", UserType: "student", Points: 10})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if !added.JoinedAt.Equal(testNow) || !added.LastActive.Equal(testNow) {
		t.Errorf("timestamps = %v / %v", added.JoinedAt, added.LastActive)
	}

	got, err := users.GetUser(ctx, "ana")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Ana" || got.Points != 10 {
		t.Errorf("GetUser = %+v", got)
	}

	// Stored under a generated key, not the id.
	if _, err := s.Read(ctx, "users/ana"); !errors.Is(err, docstore.ErrAbsent) {
		t.Errorf("users/ana should not exist, got %v", err)
	}
}

func TestUsers_AddGeneratesID(t *testing.T) {
	users := newTestUsers(t, newTestStore(t))
	added, err := users.AddUser(context.Background(), types.NewUser{Name: "Luis"})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if added.ID == "" {
		t.Error("expected generated id")
	}
}

func TestUsers_AddExistingIDReplaces(t *testing.T) {
	s := newTestStore(t)
	users := newTestUsers(t, s)
	ctx := context.Background()

	users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana"})
	if _, err := users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana María"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	all, _ := users.GetAllUsers(ctx)
	if len(all) != 1 || all[0].Name != "Ana María" {
		t.Errorf("users = %+v", all)
	}
}

func TestUsers_AddValidates(t *testing.T) {
	users := newTestUsers(t, newTestStore(t))
	_, err := users.AddUser(context.Background(), types.NewUser{Name: ""})
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Errorf("error = %v, want validation.Errors", err)
	}
}

func TestUsers_GetMissing(t *testing.T) {
	users := newTestUsers(t, newTestStore(t))
	if _, err := users.GetUser(context.Background(), "nobody"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("error = %v, want ErrRecordNotFound", err)
	}
}

func TestUsers_UpdateStampsAndClamps(t *testing.T) {
	s := newTestStore(t)
	users := newTestUsers(t, s)
	ctx := context.Background()
	users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana", Points: 10})

	later := testNow.Add(time.Hour)
	users.now = func() time.Time { return later }

	negative := -5
	streak := 4
	got, err := users.UpdateUser(ctx, "ana", types.UserUpdate{Points: &negative, Streak: &streak})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Points != 0 {
		t.Errorf("Points = %d, want clamped 0", got.Points)
	}
	if got.LongestStreak != 4 {
		t.Errorf("LongestStreak = %d, want 4", got.LongestStreak)
	}
	if !got.LastActive.Equal(later) {
		t.Errorf("LastActive = %v, want %v", got.LastActive, later)
	}

	// Empty update still stamps lastActive.
	latest := later.Add(time.Hour)
	users.now = func() time.Time { return latest }
	got, err = users.UpdateUser(ctx, "ana", types.UserUpdate{})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if !got.LastActive.Equal(latest) {
		t.Errorf("LastActive = %v, want %v", got.LastActive, latest)
	}

	if _, err := users.UpdateUser(ctx, "ghost", types.UserUpdate{}); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("update missing user error = %v", err)
	}
}

func TestUsers_AdjustPoints(t *testing.T) {
	users := newTestUsers(t, newTestStore(t))
	ctx := context.Background()
	users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana", Points: 3})

	applied, err := users.AdjustPoints(ctx, "ana", -10)
	if err != nil {
		t.Fatalf("AdjustPoints: %v", err)
	}
	if applied != -3 {
		t.Errorf("applied = %d, want -3", applied)
	}
	applied, _ = users.AdjustPoints(ctx, "ana", 7)
	if applied != 7 {
		t.Errorf("applied = %d, want 7", applied)
	}
	got, _ := users.GetUser(ctx, "ana")
	if got.Points != 7 {
		t.Errorf("Points = %d, want 7", got.Points)
	}
}

func TestUsers_PointsLimit(t *testing.T) {
	users := newTestUsers(t, newTestStore(t))
	ctx := context.Background()
	users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana", Points: types.MaxPoints - 1})

	if _, err := users.AdjustPoints(ctx, "ana", 2); !errors.Is(err, ErrPointsLimit) {
		t.Fatalf("AdjustPoints past ceiling error = %v, want ErrPointsLimit", err)
	}
	got, _ := users.GetUser(ctx, "ana")
	if got.Points != types.MaxPoints-1 {
		t.Errorf("Points = %d, want unchanged %d", got.Points, types.MaxPoints-1)
	}

	if _, err := users.AdjustPoints(ctx, "ana", 1); err != nil {
		t.Fatalf("AdjustPoints to ceiling: %v", err)
	}

	over := types.MaxPoints + 1
	var verrs validation.Errors
	if _, err := users.UpdateUser(ctx, "ana", types.UserUpdate{Points: &over}); !errors.As(err, &verrs) {
		t.Errorf("UpdateUser past ceiling error = %v, want validation errors", err)
	}
}

func TestUsers_ClearAll(t *testing.T) {
	users := newTestUsers(t, newTestStore(t))
	ctx := context.Background()
	users.AddUser(ctx, types.NewUser{Name: "A"})
	users.AddUser(ctx, types.NewUser{Name: "B"})

	if err := users.ClearAllUsers(ctx); err != nil {
		t.Fatalf("ClearAllUsers: %v", err)
	}
	all, err := users.GetAllUsers(ctx)
	if err != nil {
		t.Fatalf("GetAllUsers: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("users = %+v, want none", all)
	}
}

func TestUsers_Subscribe(t *testing.T) {
	s := newTestStore(t)
	users := newTestUsers(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lists := make(chan []types.User, 16)
	sub, err := users.SubscribeUsers(ctx, func(u []types.User) { lists <- u })
	if err != nil {
		t.Fatalf("SubscribeUsers: %v", err)
	}
	defer sub.Close()

	users.AddUser(context.Background(), types.NewUser{ID: "ana", Name: "Ana"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case list := <-lists:
			if len(list) == 1 && list[0].ID == "ana" {
				return
			}
		case <-deadline:
			t.Fatal("no delivery containing the new user")
		}
	}
}

func TestUsers_StoreUnavailablePropagates(t *testing.T) {
	s, err := docstore.Open(":memory:", docstore.Options{MaxRetries: 1, RetryBase: time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	users := NewUsers(s)
	s.Close()

	ctx := context.Background()
	if _, err := users.GetAllUsers(ctx); !errors.Is(err, docstore.ErrUnavailable) {
		t.Errorf("GetAllUsers error = %v, want ErrUnavailable", err)
	}
	if _, err := users.GetUser(ctx, "x"); !errors.Is(err, docstore.ErrUnavailable) {
		t.Errorf("GetUser error = %v, want ErrUnavailable", err)
	}
	if _, err := users.AddUser(ctx, types.NewUser{Name: "A"}); !errors.Is(err, docstore.ErrUnavailable) {
		t.Errorf("AddUser error = %v, want ErrUnavailable", err)
	}
}

func TestUsers_WithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	users := newTestUsers(t, s)
	ctx := context.Background()
	users.AddUser(ctx, types.NewUser{ID: "ana", Name: "Ana", Points: 10})

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx docstore.Tx) error {
		if _, err := users.WithTx(tx).AdjustPoints(ctx, "ana", 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact error = %v", err)
	}
	got, _ := users.GetUser(ctx, "ana")
	if got.Points != 10 {
		t.Errorf("Points = %d after rollback, want 10", got.Points)
	}
}
