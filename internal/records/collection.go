// Package records maps users and goals onto the document store.
//
// Documents are stored under generated keys while callers address them by
// their logical id, so single-record lookups scan the collection.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/procasteam/procas/internal/docstore"
)

var (
	// ErrRecordNotFound is returned when no record has the requested id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrGoalLocked is returned when a goal with open bets would be made
	// private or deleted.
	ErrGoalLocked = errors.New("goal has open bets")

	// ErrPointsLimit is returned when a change would push a balance past
	// types.MaxPoints. The change is not applied.
	ErrPointsLimit = errors.New("points limit exceeded")
)

// Backend is the document store surface used for transactions and
// subscriptions.
type Backend interface {
	docstore.Tx
	Transact(ctx context.Context, fn func(tx docstore.Tx) error) error
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (*docstore.Subscription, error)
	ReadVersioned(ctx context.Context, path string) (json.RawMessage, int64, error)
	CompareAndSwap(ctx context.Context, path string, expected int64, value json.RawMessage) error
}

type keyed[T any] struct {
	key   string
	value T
}

// collection reads and writes documents of type T under one root path.
type collection[T any] struct {
	name string
	id   func(*T) string
}

// decode reads every document in the collection. Documents that do not
// decode are logged and skipped so one bad record cannot hide the rest.
func (c collection[T]) decode(raw json.RawMessage) ([]keyed[T], error) {
	if raw == nil {
		return nil, nil
	}
	var docs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}

	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]keyed[T], 0, len(keys))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal(docs[k], &v); err != nil {
			slog.Warn("skipping undecodable document",
				"component", "records",
				"action", "decode",
				"collection", c.name,
				"key", k,
				"error", err,
			)
			continue
		}
		out = append(out, keyed[T]{key: k, value: v})
	}
	return out, nil
}

func (c collection[T]) all(ctx context.Context, db docstore.Tx) ([]keyed[T], error) {
	raw, err := db.Read(ctx, c.name)
	if errors.Is(err, docstore.ErrAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.name, err)
	}
	return c.decode(raw)
}

func (c collection[T]) find(ctx context.Context, db docstore.Tx, id string) (keyed[T], error) {
	docs, err := c.all(ctx, db)
	if err != nil {
		return keyed[T]{}, err
	}
	for _, d := range docs {
		if c.id(&d.value) == id {
			return d, nil
		}
	}
	return keyed[T]{}, fmt.Errorf("%s %q: %w", c.name, id, ErrRecordNotFound)
}

func (c collection[T]) put(ctx context.Context, db docstore.Tx, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, key, err)
	}
	if err := db.Write(ctx, c.name+"/"+key, data); err != nil {
		return fmt.Errorf("write %s/%s: %w", c.name, key, err)
	}
	return nil
}

func (c collection[T]) remove(ctx context.Context, db docstore.Tx, key string) error {
	if err := db.Write(ctx, c.name+"/"+key, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, key, err)
	}
	return nil
}

func values[T any](docs []keyed[T]) []T {
	out := make([]T, len(docs))
	for i, d := range docs {
		out[i] = d.value
	}
	return out
}

// atomically runs fn on the bound transaction, or opens one on backend.
func atomically(ctx context.Context, backend Backend, tx docstore.Tx, fn func(db docstore.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	return backend.Transact(ctx, fn)
}
