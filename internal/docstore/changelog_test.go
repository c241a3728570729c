package docstore

import (
	"context"
	"testing"
	"time"
)

func TestChanges_RecordsUpsertsAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "users/a", `{"points":1}`)
	mustWrite(t, s, "users/a/points", `2`)
	mustWrite(t, s, "users/a", `null`)
	mustWrite(t, s, "users/missing", `null`) // no-op, not logged

	changes, err := s.Changes(ctx, 0, 100)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("got %d changes, want 3: %+v", len(changes), changes)
	}

	if changes[0].Operation != OperationUpsert || changes[0].Version != 1 {
		t.Errorf("change 0 = %+v", changes[0])
	}
	if changes[1].Operation != OperationUpsert || changes[1].Version != 2 || string(changes[1].Payload) != `{"points":2}` {
		t.Errorf("change 1 = %+v", changes[1])
	}
	if changes[2].Operation != OperationDelete || changes[2].Path != "users/a" || changes[2].Payload != nil {
		t.Errorf("change 2 = %+v", changes[2])
	}
	for i := 1; i < len(changes); i++ {
		if changes[i].Sequence <= changes[i-1].Sequence {
			t.Errorf("sequence not increasing at %d", i)
		}
	}

	after, err := s.Changes(ctx, changes[0].Sequence, 1)
	if err != nil {
		t.Fatalf("Changes(after): %v", err)
	}
	if len(after) != 1 || after[0].Sequence != changes[1].Sequence {
		t.Errorf("paged changes = %+v", after)
	}
}

func TestCompact_RemovesOldEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	mustWrite(t, s, "users/a", `{}`)
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	mustWrite(t, s, "users/b", `{}`)

	n, err := s.Compact(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if n != 1 {
		t.Errorf("Compact removed %d, want 1", n)
	}

	changes, _ := s.Changes(ctx, 0, 10)
	if len(changes) != 1 || changes[0].Path != "users/b" {
		t.Errorf("remaining changes = %+v", changes)
	}
	if seq, _ := s.LatestSequence(ctx); seq != 2 {
		t.Errorf("LatestSequence = %d, want 2", seq)
	}
}
