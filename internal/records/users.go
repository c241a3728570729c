package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/types"
	"github.com/procasteam/procas/internal/validation"
)

const usersPath = "users"

var userCollection = collection[types.User]{
	name: usersPath,
	id:   func(u *types.User) string { return u.ID },
}

// Users is record access for the users collection.
type Users struct {
	backend Backend
	tx      docstore.Tx
	now     func() time.Time
}

// NewUsers returns user record access over backend.
func NewUsers(backend Backend) *Users {
	return &Users{backend: backend, now: time.Now}
}

// WithTx returns a copy whose reads and writes go through tx.
func (u *Users) WithTx(tx docstore.Tx) *Users {
	bound := *u
	bound.tx = tx
	return &bound
}

func (u *Users) db() docstore.Tx {
	if u.tx != nil {
		return u.tx
	}
	return u.backend
}

// GetUser returns the user with the given id.
func (u *Users) GetUser(ctx context.Context, id string) (*types.User, error) {
	doc, err := userCollection.find(ctx, u.db(), id)
	if err != nil {
		return nil, err
	}
	return &doc.value, nil
}

// GetAllUsers returns every user in storage-key order, which is join order
// for generated keys.
func (u *Users) GetAllUsers(ctx context.Context) ([]types.User, error) {
	docs, err := userCollection.all(ctx, u.db())
	if err != nil {
		return nil, err
	}
	return values(docs), nil
}

// AddUser stores a new user. An empty id is generated. Adding an id that
// already exists replaces that user's document.
func (u *Users) AddUser(ctx context.Context, in types.NewUser) (*types.User, error) {
	if err := validation.ValidateNewUser(in); err != nil {
		return nil, err
	}

	now := u.now().UTC()
	user := types.User{
		ID:            in.ID,
		Name:          in.Name,
		UserType:      in.UserType,
		Points:        in.Points,
		Streak:        in.Streak,
		LongestStreak: in.Streak,
		JoinedAt:      now,
		LastActive:    now,
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	err := atomically(ctx, u.backend, u.tx, func(db docstore.Tx) error {
		key := docstore.GenerateKey()
		existing, err := userCollection.find(ctx, db, user.ID)
		switch {
		case err == nil:
			key = existing.key
		case !errors.Is(err, ErrRecordNotFound):
			return err
		}
		return userCollection.put(ctx, db, key, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update. Points are clamped at zero and
// lastActive is always stamped.
func (u *Users) UpdateUser(ctx context.Context, id string, upd types.UserUpdate) (*types.User, error) {
	if err := validation.ValidateUserUpdate(upd); err != nil {
		return nil, err
	}
	return u.Mutate(ctx, id, func(user *types.User) error {
		if upd.Name != nil {
			user.Name = *upd.Name
		}
		if upd.UserType != nil {
			user.UserType = *upd.UserType
		}
		if upd.Points != nil {
			user.Points = *upd.Points
		}
		if upd.Streak != nil {
			user.Streak = *upd.Streak
			if user.Streak > user.LongestStreak {
				user.LongestStreak = user.Streak
			}
		}
		return nil
	})
}

// Mutate reads a user, applies fn and writes the result back atomically.
// Points are clamped at zero and lastActive is stamped after fn runs. A
// balance above types.MaxPoints aborts the write with ErrPointsLimit.
func (u *Users) Mutate(ctx context.Context, id string, fn func(*types.User) error) (*types.User, error) {
	var updated types.User
	err := atomically(ctx, u.backend, u.tx, func(db docstore.Tx) error {
		doc, err := userCollection.find(ctx, db, id)
		if err != nil {
			return err
		}
		user := doc.value
		if err := fn(&user); err != nil {
			return err
		}
		if user.Points < 0 {
			user.Points = 0
		}
		if user.Points > types.MaxPoints {
			return fmt.Errorf("user %q: %w", id, ErrPointsLimit)
		}
		user.LastActive = u.now().UTC()
		if err := userCollection.put(ctx, db, doc.key, &user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AdjustPoints adds delta to a user's balance, clamped at zero, and returns
// the change actually applied.
func (u *Users) AdjustPoints(ctx context.Context, id string, delta int) (int, error) {
	var applied int
	_, err := u.Mutate(ctx, id, func(user *types.User) error {
		before := user.Points
		user.Points += delta
		if user.Points < 0 {
			user.Points = 0
		}
		applied = user.Points - before
		return nil
	})
	return applied, err
}

// ClearAllUsers deletes every user.
func (u *Users) ClearAllUsers(ctx context.Context) error {
	if err := u.db().Write(ctx, usersPath, nil); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	return nil
}

// SubscribeUsers calls fn with the full user list now and after every change.
func (u *Users) SubscribeUsers(ctx context.Context, fn func([]types.User)) (*docstore.Subscription, error) {
	return u.backend.Subscribe(ctx, usersPath, func(raw json.RawMessage) {
		docs, err := userCollection.decode(raw)
		if err != nil {
			slog.Warn("users subscription: decode failed",
				"component", "records",
				"action", "subscribe_users",
				"error", err,
			)
			return
		}
		fn(values(docs))
	})
}
