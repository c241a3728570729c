package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/types"
	"github.com/procasteam/procas/internal/validation"
)

const (
	goalsPath = "goals"

	// casAttempts bounds optimistic retries for SetGoalPublic.
	casAttempts = 3
)

var goalCollection = collection[types.Goal]{
	name: goalsPath,
	id:   func(g *types.Goal) string { return g.ID },
}

// Goals is record access for the goals collection. Multi-goal queries fetch
// the whole collection and filter in memory.
type Goals struct {
	backend Backend
	tx      docstore.Tx
	now     func() time.Time
}

// NewGoals returns goal record access over backend.
func NewGoals(backend Backend) *Goals {
	return &Goals{backend: backend, now: time.Now}
}

// WithTx returns a copy whose reads and writes go through tx.
func (g *Goals) WithTx(tx docstore.Tx) *Goals {
	bound := *g
	bound.tx = tx
	return &bound
}

func (g *Goals) db() docstore.Tx {
	if g.tx != nil {
		return g.tx
	}
	return g.backend
}

// GetGoal returns the goal with the given id.
func (g *Goals) GetGoal(ctx context.Context, id string) (*types.Goal, error) {
	doc, err := goalCollection.find(ctx, g.db(), id)
	if err != nil {
		return nil, err
	}
	return &doc.value, nil
}

// GetAllGoals returns every goal, newest first.
func (g *Goals) GetAllGoals(ctx context.Context) ([]types.Goal, error) {
	return g.filter(ctx, func(*types.Goal) bool { return true })
}

// GetUserGoals returns the goals owned by userID, newest first.
func (g *Goals) GetUserGoals(ctx context.Context, userID string) ([]types.Goal, error) {
	return g.filter(ctx, func(goal *types.Goal) bool { return goal.UserID == userID })
}

// GetPublicGoals returns every public goal, newest first.
func (g *Goals) GetPublicGoals(ctx context.Context) ([]types.Goal, error) {
	return g.filter(ctx, func(goal *types.Goal) bool { return goal.IsPublic })
}

// GetTodayGoals returns userID's goals that are due on now's calendar day
// or recur daily.
func (g *Goals) GetTodayGoals(ctx context.Context, userID string, now time.Time) ([]types.Goal, error) {
	return g.filter(ctx, func(goal *types.Goal) bool {
		return goal.UserID == userID && dueOn(goal, now)
	})
}

func dueOn(goal *types.Goal, now time.Time) bool {
	if goal.Frequency == types.FrequencyDaily {
		return true
	}
	dy, dm, dd := goal.DueDate.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return dy == ny && dm == nm && dd == nd
}

func (g *Goals) filter(ctx context.Context, keep func(*types.Goal) bool) ([]types.Goal, error) {
	docs, err := goalCollection.all(ctx, g.db())
	if err != nil {
		return nil, err
	}
	goals := make([]types.Goal, 0, len(docs))
	for i := range docs {
		if keep(&docs[i].value) {
			goals = append(goals, docs[i].value)
		}
	}
	sortNewestFirst(goals)
	return goals, nil
}

func sortNewestFirst(goals []types.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
}

// AddGoal stores a new goal under a generated key. An empty id is generated,
// a zero CreatedAt is stamped and a nil status becomes Pending.
func (g *Goals) AddGoal(ctx context.Context, goal types.Goal) (*types.Goal, error) {
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = g.now().UTC()
	}
	if goal.Status == nil {
		goal.Status = types.Pending{}
	}

	if err := goalCollection.put(ctx, g.db(), docstore.GenerateKey(), &goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

// ReplaceGoal overwrites the stored goal that has goal.ID.
func (g *Goals) ReplaceGoal(ctx context.Context, goal *types.Goal) error {
	return atomically(ctx, g.backend, g.tx, func(db docstore.Tx) error {
		doc, err := goalCollection.find(ctx, db, goal.ID)
		if err != nil {
			return err
		}
		return goalCollection.put(ctx, db, doc.key, goal)
	})
}

// UpdateGoal merges a partial update and stamps lastUpdated. A difficulty
// change re-derives points while the goal is pending.
func (g *Goals) UpdateGoal(ctx context.Context, id string, upd types.GoalUpdate) (*types.Goal, error) {
	now := g.now().UTC()
	if err := validation.ValidateGoalUpdate(upd, now); err != nil {
		return nil, err
	}

	var updated types.Goal
	err := atomically(ctx, g.backend, g.tx, func(db docstore.Tx) error {
		doc, err := goalCollection.find(ctx, db, id)
		if err != nil {
			return err
		}
		goal := doc.value
		if upd.IsPublic != nil && !*upd.IsPublic && len(goal.Bets) > 0 {
			return fmt.Errorf("make goal %q private: %w", id, ErrGoalLocked)
		}
		applyGoalUpdate(&goal, upd)
		goal.LastUpdated = &now
		if err := goalCollection.put(ctx, db, doc.key, &goal); err != nil {
			return err
		}
		updated = goal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func applyGoalUpdate(goal *types.Goal, upd types.GoalUpdate) {
	if upd.Title != nil {
		goal.Title = *upd.Title
	}
	if upd.Description != nil {
		goal.Description = *upd.Description
	}
	if upd.DueDate != nil {
		goal.DueDate = *upd.DueDate
	}
	if upd.Frequency != nil {
		goal.Frequency = *upd.Frequency
	}
	if upd.Difficulty != nil && goal.IsPending() {
		goal.Difficulty = *upd.Difficulty
		goal.Points = goal.Difficulty.Points()
	}
	if upd.IsPublic != nil {
		goal.IsPublic = *upd.IsPublic
	}
}

// SetGoalPublic toggles a goal's visibility. Outside a transaction it uses
// a versioned compare-and-swap, retrying a few times on conflict.
func (g *Goals) SetGoalPublic(ctx context.Context, id string, public bool) (*types.Goal, error) {
	if g.tx != nil {
		return g.UpdateGoal(ctx, id, types.GoalUpdate{IsPublic: &public})
	}

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		goal, err := g.setPublicOnce(ctx, id, public)
		if err == nil {
			return goal, nil
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (g *Goals) setPublicOnce(ctx context.Context, id string, public bool) (*types.Goal, error) {
	doc, err := goalCollection.find(ctx, g.backend, id)
	if err != nil {
		return nil, err
	}
	path := goalsPath + "/" + doc.key

	raw, version, err := g.backend.ReadVersioned(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var goal types.Goal
	if err := json.Unmarshal(raw, &goal); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if !public && len(goal.Bets) > 0 {
		return nil, fmt.Errorf("make goal %q private: %w", id, ErrGoalLocked)
	}

	now := g.now().UTC()
	goal.IsPublic = public
	goal.LastUpdated = &now
	data, err := json.Marshal(goal)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := g.backend.CompareAndSwap(ctx, path, version, data); err != nil {
		return nil, fmt.Errorf("swap %s: %w", path, err)
	}
	return &goal, nil
}

// DeleteGoal removes a goal. Goals carrying bets cannot be deleted before
// settlement.
func (g *Goals) DeleteGoal(ctx context.Context, id string) error {
	return atomically(ctx, g.backend, g.tx, func(db docstore.Tx) error {
		doc, err := goalCollection.find(ctx, db, id)
		if err != nil {
			return err
		}
		if doc.value.IsPending() && len(doc.value.Bets) > 0 {
			return fmt.Errorf("delete goal %q: %w", id, ErrGoalLocked)
		}
		return goalCollection.remove(ctx, db, doc.key)
	})
}

// SubscribeGoals calls fn with every goal, newest first, now and after
// every change.
func (g *Goals) SubscribeGoals(ctx context.Context, fn func([]types.Goal)) (*docstore.Subscription, error) {
	return g.subscribe(ctx, "subscribe_goals", func(*types.Goal) bool { return true }, fn)
}

// SubscribePublicGoals is SubscribeGoals restricted to public goals.
func (g *Goals) SubscribePublicGoals(ctx context.Context, fn func([]types.Goal)) (*docstore.Subscription, error) {
	return g.subscribe(ctx, "subscribe_public_goals", func(goal *types.Goal) bool { return goal.IsPublic }, fn)
}

func (g *Goals) subscribe(ctx context.Context, action string, keep func(*types.Goal) bool, fn func([]types.Goal)) (*docstore.Subscription, error) {
	return g.backend.Subscribe(ctx, goalsPath, func(raw json.RawMessage) {
		docs, err := goalCollection.decode(raw)
		if err != nil {
			slog.Warn("goals subscription: decode failed",
				"component", "records",
				"action", action,
				"error", err,
			)
			return
		}
		goals := make([]types.Goal, 0, len(docs))
		for i := range docs {
			if keep(&docs[i].value) {
				goals = append(goals, docs[i].value)
			}
		}
		sortNewestFirst(goals)
		fn(goals)
	})
}
