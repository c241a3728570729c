// Package settlement applies the point effects of goal completion, goal
// failure, bets and the daily challenge. Every operation runs in a single
// document-store transaction, so a failure leaves no partial state behind.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/progress"
	"github.com/procasteam/procas/internal/records"
	"github.com/procasteam/procas/internal/types"
	"github.com/procasteam/procas/internal/validation"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrGoalSettled        = errors.New("goal already settled")
	ErrGoalNotPublic      = errors.New("goal is not public")
	ErrSelfBet            = errors.New("cannot bet on own goal")
	ErrChallengeClaimed   = errors.New("daily challenge already claimed today")
)

const (
	// BetPayoutMultiplier is applied to the stake of every winning bet.
	BetPayoutMultiplier = 2

	// DailyChallengePoints is awarded once per calendar day.
	DailyChallengePoints = 15
)

// PublicBonus is the extra award for completing a public goal: half the
// goal's points, rounded up.
func PublicBonus(points int) int {
	return (points + 1) / 2
}

// Service runs settlement procedures against the document store.
type Service struct {
	store records.Backend
	users *records.Users
	goals *records.Goals
	now   func() time.Time
}

// NewService returns a settlement service over store.
func NewService(store records.Backend, users *records.Users, goals *records.Goals) *Service {
	return &Service{
		store: store,
		users: users,
		goals: goals,
		now:   time.Now,
	}
}

// settleTx carries record access bound to one transaction.
type settleTx struct {
	users *records.Users
	goals *records.Goals
	now   time.Time
}

func (s *Service) begin(tx docstore.Tx) *settleTx {
	return &settleTx{
		users: s.users.WithTx(tx),
		goals: s.goals.WithTx(tx),
		now:   s.now(),
	}
}

// CreateGoal validates and stores a new pending goal for an existing user.
// Points come from the difficulty.
func (s *Service) CreateGoal(ctx context.Context, in types.NewGoal) (*types.Goal, error) {
	now := s.now()
	if err := validation.ValidateNewGoal(in, now); err != nil {
		return nil, err
	}

	var created *types.Goal
	err := s.store.Transact(ctx, func(tx docstore.Tx) error {
		st := s.begin(tx)
		if _, err := st.users.GetUser(ctx, in.UserID); err != nil {
			return fmt.Errorf("goal owner: %w", err)
		}
		goal, err := st.goals.AddGoal(ctx, types.Goal{
			UserID:      in.UserID,
			Title:       in.Title,
			Description: in.Description,
			DueDate:     in.DueDate,
			Frequency:   in.Frequency,
			Difficulty:  in.Difficulty,
			Points:      in.Difficulty.Points(),
			IsPublic:    in.IsPublic,
			Status:      types.Pending{},
			CreatedAt:   now.UTC(),
		})
		created = goal
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("goal created",
		"component", "settlement",
		"action", "create_goal",
		"goal_id", created.ID,
		"owner_id", created.UserID,
		"points", created.Points,
		"public", created.IsPublic,
	)
	return created, nil
}

// CompleteGoal marks a goal completed and awards its points to the owner.
// Public goals take the public path with no evidence. Completing a completed
// goal is a no-op reported as AlreadySettled.
func (s *Service) CompleteGoal(ctx context.Context, goalID string) (*types.Settlement, error) {
	return s.settle(ctx, goalID, "complete_goal", func(st *settleTx, goal *types.Goal) (*types.Settlement, error) {
		return st.complete(ctx, goal, "")
	})
}

// CompletePublicGoal completes a public goal with optional evidence. The
// owner gets the goal's points plus PublicBonus and every "for" bet pays out.
func (s *Service) CompletePublicGoal(ctx context.Context, goalID, evidenceURL string) (*types.Settlement, error) {
	return s.settle(ctx, goalID, "complete_public_goal", func(st *settleTx, goal *types.Goal) (*types.Settlement, error) {
		if !goal.IsPublic {
			return nil, fmt.Errorf("complete goal %q with evidence: %w", goal.ID, ErrGoalNotPublic)
		}
		return st.complete(ctx, goal, evidenceURL)
	})
}

// FailPublicGoal marks a public goal incomplete. The owner loses the goal's
// points, never dropping below zero, and every "against" bet pays out.
func (s *Service) FailPublicGoal(ctx context.Context, goalID string) (*types.Settlement, error) {
	return s.settle(ctx, goalID, "fail_public_goal", func(st *settleTx, goal *types.Goal) (*types.Settlement, error) {
		if !goal.IsPublic {
			return nil, fmt.Errorf("fail goal %q: %w", goal.ID, ErrGoalNotPublic)
		}
		return st.fail(ctx, goal)
	})
}

// MarkGoalAsIncomplete fails a goal. Public goals take the public path;
// private goals cost no points and only bump the owner's incomplete count.
func (s *Service) MarkGoalAsIncomplete(ctx context.Context, goalID string) (*types.Settlement, error) {
	return s.settle(ctx, goalID, "mark_goal_incomplete", func(st *settleTx, goal *types.Goal) (*types.Settlement, error) {
		return st.fail(ctx, goal)
	})
}

func (s *Service) settle(ctx context.Context, goalID, action string, fn func(*settleTx, *types.Goal) (*types.Settlement, error)) (*types.Settlement, error) {
	var result *types.Settlement
	err := s.store.Transact(ctx, func(tx docstore.Tx) error {
		st := s.begin(tx)
		goal, err := st.goals.GetGoal(ctx, goalID)
		if err != nil {
			return err
		}
		result, err = fn(st, goal)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("goal settled",
		"component", "settlement",
		"action", action,
		"goal_id", goalID,
		"owner_id", result.OwnerID,
		"outcome", result.Outcome,
		"already_settled", result.AlreadySettled,
		"owner_delta", result.OwnerDelta,
		"payouts", len(result.Payouts),
	)
	return result, nil
}

func (st *settleTx) complete(ctx context.Context, goal *types.Goal, evidenceURL string) (*types.Settlement, error) {
	result := &types.Settlement{
		Goal:    goal,
		Outcome: types.OutcomeCompleted,
		OwnerID: goal.UserID,
		Payouts: []types.Payout{},
	}
	switch goal.Status.(type) {
	case types.Completed:
		result.AlreadySettled = true
		return result, nil
	case types.Incomplete:
		return nil, fmt.Errorf("complete goal %q: %w", goal.ID, ErrGoalSettled)
	}

	at := st.now.UTC()
	goal.Status = types.Completed{At: at, EvidenceURL: evidenceURL}
	goal.LastUpdated = &at
	if err := st.goals.ReplaceGoal(ctx, goal); err != nil {
		return nil, err
	}

	award := goal.Points
	if goal.IsPublic {
		award += PublicBonus(goal.Points)
	}
	_, err := st.users.Mutate(ctx, goal.UserID, func(u *types.User) error {
		u.Points += award
		progress.AdvanceStreak(u, st.now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("goal owner: %w", err)
	}
	result.OwnerDelta = award

	if goal.IsPublic {
		payouts, err := st.settleBets(ctx, goal, types.BetFor)
		if err != nil {
			return nil, err
		}
		result.Payouts = payouts
	}
	return result, nil
}

func (st *settleTx) fail(ctx context.Context, goal *types.Goal) (*types.Settlement, error) {
	result := &types.Settlement{
		Goal:    goal,
		Outcome: types.OutcomeIncomplete,
		OwnerID: goal.UserID,
		Payouts: []types.Payout{},
	}
	switch goal.Status.(type) {
	case types.Incomplete:
		result.AlreadySettled = true
		return result, nil
	case types.Completed:
		return nil, fmt.Errorf("fail goal %q: %w", goal.ID, ErrGoalSettled)
	}

	at := st.now.UTC()
	goal.Status = types.Incomplete{At: at}
	goal.LastUpdated = &at
	if err := st.goals.ReplaceGoal(ctx, goal); err != nil {
		return nil, err
	}

	_, err := st.users.Mutate(ctx, goal.UserID, func(u *types.User) error {
		u.IncompleteGoals++
		if goal.IsPublic {
			before := u.Points
			u.Points = max(0, u.Points-goal.Points)
			result.OwnerDelta = u.Points - before
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("goal owner: %w", err)
	}

	if goal.IsPublic {
		payouts, err := st.settleBets(ctx, goal, types.BetAgainst)
		if err != nil {
			return nil, err
		}
		result.Payouts = payouts
	}
	return result, nil
}

// settleBets pays every bet on the winning side BetPayoutMultiplier times
// its stake. Losing stakes were deducted when the bet was placed.
func (st *settleTx) settleBets(ctx context.Context, goal *types.Goal, winner types.BetType) ([]types.Payout, error) {
	payouts := make([]types.Payout, 0, len(goal.Bets))
	for _, bet := range goal.Bets {
		p := types.Payout{UserID: bet.UserID, BetType: bet.BetType, Amount: bet.Amount}
		if bet.BetType == winner {
			p.Paid = bet.Amount * BetPayoutMultiplier
			if _, err := st.users.AdjustPoints(ctx, bet.UserID, p.Paid); err != nil {
				if !errors.Is(err, records.ErrRecordNotFound) {
					return nil, fmt.Errorf("pay bet: %w", err)
				}
				slog.Warn("bettor no longer exists, payout skipped",
					"component", "settlement",
					"action", "settle_bets",
					"goal_id", goal.ID,
					"user_id", bet.UserID,
					"amount", p.Paid,
				)
				p.Paid = 0
			}
		}
		payouts = append(payouts, p)
	}
	return payouts, nil
}

// AddBetToGoal stakes points from a bettor on a pending public goal owned by
// someone else. The stake is deducted and the bet recorded together.
func (s *Service) AddBetToGoal(ctx context.Context, goalID string, in types.NewBet) (*types.Goal, error) {
	if err := validation.ValidateNewBet(in); err != nil {
		return nil, err
	}

	var updated *types.Goal
	err := s.store.Transact(ctx, func(tx docstore.Tx) error {
		st := s.begin(tx)
		goal, err := st.goals.GetGoal(ctx, goalID)
		if err != nil {
			return err
		}
		switch {
		case !goal.IsPublic:
			return fmt.Errorf("bet on goal %q: %w", goalID, ErrGoalNotPublic)
		case !goal.IsPending():
			return fmt.Errorf("bet on goal %q: %w", goalID, ErrGoalSettled)
		case goal.UserID == in.UserID:
			return fmt.Errorf("bet on goal %q: %w", goalID, ErrSelfBet)
		}

		_, err = st.users.Mutate(ctx, in.UserID, func(u *types.User) error {
			if u.Points < in.Amount {
				return fmt.Errorf("stake %d with balance %d: %w", in.Amount, u.Points, ErrInsufficientPoints)
			}
			u.Points -= in.Amount
			return nil
		})
		if err != nil {
			return fmt.Errorf("bettor: %w", err)
		}

		goal.Bets = append(goal.Bets, types.Bet{
			UserID:   in.UserID,
			BetType:  in.BetType,
			Amount:   in.Amount,
			PlacedAt: st.now.UTC(),
		})
		if err := st.goals.ReplaceGoal(ctx, goal); err != nil {
			return err
		}
		updated = goal
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("bet placed",
		"component", "settlement",
		"action", "add_bet",
		"goal_id", goalID,
		"user_id", in.UserID,
		"bet_type", in.BetType,
		"amount", in.Amount,
	)
	return updated, nil
}

// ClaimDailyChallenge awards DailyChallengePoints once per calendar day.
func (s *Service) ClaimDailyChallenge(ctx context.Context, userID string) (*types.User, error) {
	now := s.now()
	today := progress.DayKey(now)

	user, err := s.users.Mutate(ctx, userID, func(u *types.User) error {
		if u.LastChallengeOn == today {
			return fmt.Errorf("user %q on %s: %w", userID, today, ErrChallengeClaimed)
		}
		u.LastChallengeOn = today
		u.Points += DailyChallengePoints
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("daily challenge claimed",
		"component", "settlement",
		"action", "daily_challenge",
		"user_id", userID,
		"points", user.Points,
	)
	return user, nil
}

// SweepOverdue fails every pending one-off goal whose due date has passed
// and returns how many were settled. Goals that fail to settle are logged
// and skipped.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	goals, err := s.goals.GetAllGoals(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	settled := 0
	for i := range goals {
		g := &goals[i]
		if !g.IsPending() || g.Frequency != types.FrequencyOnce || !g.DueDate.Before(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if _, err := s.MarkGoalAsIncomplete(ctx, g.ID); err != nil {
			if errors.Is(err, docstore.ErrUnavailable) {
				return settled, err
			}
			slog.Warn("overdue goal not settled",
				"component", "settlement",
				"action", "sweep_overdue",
				"goal_id", g.ID,
				"error", err,
			)
			continue
		}
		settled++
	}
	return settled, nil
}
