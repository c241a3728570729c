package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// Subscription delivers the current value of a path on its own goroutine:
// once when it starts and again after every committed change that touches
// the path. Bursts of changes are coalesced into one delivery. Writers
// never wait for subscribers.
type Subscription struct {
	path   string
	fn     func(json.RawMessage)
	store  *Store
	wake   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

// Subscribe starts delivering the value at path to fn. fn receives nil
// while nothing is stored there. The subscription ends when Close is called,
// when ctx is cancelled, or when the Store is closed.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (*Subscription, error) {
	if _, err := parsePath(path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		path:   path,
		fn:     fn,
		store:  s,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.subs.add(sub)
	go sub.run(ctx)
	return sub, nil
}

// Close stops the subscription. It does not wait for an in-flight delivery;
// use Done for that.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.cancel()
		sub.store.subs.remove(sub)
	})
}

// Done is closed once the delivery goroutine has exited.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

func (sub *Subscription) run(ctx context.Context) {
	defer close(sub.done)
	defer sub.Close()

	sub.deliver(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.wake:
			sub.deliver(ctx)
		}
	}
}

func (sub *Subscription) deliver(ctx context.Context) {
	value, err := sub.store.Read(ctx, sub.path)
	if errors.Is(err, ErrAbsent) {
		value = nil
	} else if err != nil {
		if ctx.Err() == nil {
			slog.Warn("subscription read failed",
				"component", "docstore",
				"action", "subscription_deliver",
				"path", sub.path,
				"error", err,
			)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	sub.fn(value)
}

func (sub *Subscription) notify() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

type broker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[*Subscription]struct{})}
}

func (b *broker) add(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = struct{}{}
}

func (b *broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

func (b *broker) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		for _, c := range changes {
			if overlaps(sub.path, c.Path) {
				sub.notify()
				break
			}
		}
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
