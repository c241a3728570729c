package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustWrite(t *testing.T, s *Store, path, value string) {
	t.Helper()
	if err := s.Write(context.Background(), path, json.RawMessage(value)); err != nil {
		t.Fatalf("Write(%s): %v", path, err)
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"documents", "change_log", "idempotency_keys"} {
		if _, err := s.db.Exec("SELECT * FROM " + table + " LIMIT 0"); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "procas.db")
	s, err := Open(dbPath, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	mustWrite(t, s, "users/a", `{"id":"u1"}`)
}

func TestReadWrite_Document(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "users/k1", `{"id": "u1", "points": 10}`)

	got, err := s.Read(ctx, "users/k1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"id":"u1","points":10}` {
		t.Errorf("Read = %s", got)
	}
}

func TestRead_Absent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"users", "users/missing", "users/missing/points"} {
		if _, err := s.Read(ctx, path); !errors.Is(err, ErrAbsent) {
			t.Errorf("Read(%s) error = %v, want ErrAbsent", path, err)
		}
	}
}

func TestRead_Collection(t *testing.T) {
	s := newTestStore(t)

	mustWrite(t, s, "goals/b", `{"id":"g2"}`)
	mustWrite(t, s, "goals/a", `{"id":"g1"}`)
	mustWrite(t, s, "users/a", `{"id":"u1"}`)

	got, err := s.Read(context.Background(), "goals")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var docs map[string]map[string]string
	if err := json.Unmarshal(got, &docs); err != nil {
		t.Fatalf("collection is not an object: %v (%s)", err, got)
	}
	if len(docs) != 2 || docs["a"]["id"] != "g1" || docs["b"]["id"] != "g2" {
		t.Errorf("collection = %s", got)
	}
}

func TestReadWrite_FieldPaths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "users/k1", `{"id":"u1","points":10}`)
	mustWrite(t, s, "users/k1/points", `25`)
	mustWrite(t, s, "users/k2/profile/name", `"Ana"`)

	got, err := s.Read(ctx, "users/k1/points")
	if err != nil {
		t.Fatalf("Read field: %v", err)
	}
	if string(got) != "25" {
		t.Errorf("points = %s, want 25", got)
	}

	got, err = s.Read(ctx, "users/k2")
	if err != nil {
		t.Fatalf("Read created doc: %v", err)
	}
	if string(got) != `{"profile":{"name":"Ana"}}` {
		t.Errorf("doc = %s", got)
	}

	if err := s.Write(ctx, "users/k1/points", nil); err != nil {
		t.Fatalf("delete field: %v", err)
	}
	if _, err := s.Read(ctx, "users/k1/points"); !errors.Is(err, ErrAbsent) {
		t.Errorf("deleted field error = %v, want ErrAbsent", err)
	}
}

func TestWrite_NullDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "users/a", `{"id":"u1"}`)
	mustWrite(t, s, "users/b", `{"id":"u2"}`)
	mustWrite(t, s, "goals/a", `{"id":"g1"}`)

	mustWrite(t, s, "users/a", `null`)
	if _, err := s.Read(ctx, "users/a"); !errors.Is(err, ErrAbsent) {
		t.Errorf("deleted doc error = %v, want ErrAbsent", err)
	}

	if err := s.Write(ctx, "users", nil); err != nil {
		t.Fatalf("clear collection: %v", err)
	}
	if _, err := s.Read(ctx, "users"); !errors.Is(err, ErrAbsent) {
		t.Errorf("cleared collection error = %v, want ErrAbsent", err)
	}
	if _, err := s.Read(ctx, "goals/a"); err != nil {
		t.Errorf("other collection touched: %v", err)
	}
}

func TestWrite_CollectionObjectReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "users/old", `{"id":"u0"}`)
	mustWrite(t, s, "users", `{"a":{"id":"u1"},"b":{"id":"u2"}}`)

	if _, err := s.Read(ctx, "users/old"); !errors.Is(err, ErrAbsent) {
		t.Errorf("old doc survived replace: %v", err)
	}
	if n, _ := s.Count(ctx, "users"); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestWrite_Invalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		path  string
		value string
		want  error
	}{
		{"empty path", "", `{}`, ErrInvalidPath},
		{"bad segment", "users/a b", `{}`, ErrInvalidPath},
		{"dot segment", "users/../x", `{}`, ErrInvalidPath},
		{"bad json", "users/a", `{nope`, ErrInvalidValue},
		{"collection array", "users", `[1,2]`, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Write(ctx, tt.path, json.RawMessage(tt.value))
			if !errors.Is(err, tt.want) {
				t.Errorf("Write error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateKey_UniqueAndOrdered(t *testing.T) {
	a := GenerateKey()
	time.Sleep(2 * time.Millisecond)
	b := GenerateKey()

	if a == b {
		t.Fatal("keys collide")
	}
	if strings.Compare(a, b) >= 0 {
		t.Errorf("keys not time ordered: %s >= %s", a, b)
	}
	if !segmentPattern.MatchString(a) {
		t.Errorf("key %q is not a valid path segment", a)
	}
}

func TestTransact_CommitsAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.Write(ctx, "users/a", json.RawMessage(`{"points":1}`)); err != nil {
			return err
		}
		got, err := tx.Read(ctx, "users/a/points")
		if err != nil {
			return err
		}
		if string(got) != "1" {
			t.Errorf("read inside tx = %s", got)
		}
		return tx.Write(ctx, "users/b", json.RawMessage(`{"points":2}`))
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if n, _ := s.Count(ctx, "users"); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestTransact_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	mustWrite(t, s, "users/a", `{"points":5}`)

	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.Write(ctx, "users/a/points", json.RawMessage(`0`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact error = %v, want boom", err)
	}

	got, _ := s.Read(ctx, "users/a/points")
	if string(got) != "5" {
		t.Errorf("points = %s after rollback, want 5", got)
	}
	seq, _ := s.LatestSequence(ctx)
	if seq != 1 {
		t.Errorf("LatestSequence = %d, want 1 (rolled back entry logged)", seq)
	}
}

func TestCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CompareAndSwap(ctx, "goals/g", 0, json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("create via CAS: %v", err)
	}
	_, version, err := s.ReadVersioned(ctx, "goals/g")
	if err != nil {
		t.Fatalf("ReadVersioned: %v", err)
	}
	if version != 1 {
		t.Fatalf("version = %d, want 1", version)
	}

	if err := s.CompareAndSwap(ctx, "goals/g", 1, json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("CAS at current version: %v", err)
	}
	err = s.CompareAndSwap(ctx, "goals/g", 1, json.RawMessage(`{"v":3}`))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale CAS error = %v, want ErrVersionConflict", err)
	}

	got, version, _ := s.ReadVersioned(ctx, "goals/g")
	if string(got) != `{"v":2}` || version != 2 {
		t.Errorf("doc = %s v%d, want {\"v\":2} v2", got, version)
	}

	if _, _, err := s.ReadVersioned(ctx, "goals"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("ReadVersioned(collection) error = %v, want ErrInvalidPath", err)
	}
}

func TestClosedStore_Unavailable(t *testing.T) {
	s, err := Open(":memory:", Options{MaxRetries: 1, RetryBase: time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	ctx := context.Background()
	if _, err := s.Read(ctx, "users"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Read error = %v, want ErrUnavailable", err)
	}
	if err := s.Write(ctx, "users/a", json.RawMessage(`{}`)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Write error = %v, want ErrUnavailable", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Ping error = %v, want ErrUnavailable", err)
	}
}

func TestBackup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustWrite(t, s, "users/a", `{"id":"u1"}`)

	dest := filepath.Join(t.TempDir(), "snap", "current.db")
	if err := s.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	// A second backup replaces the first.
	if err := s.Backup(ctx, dest); err != nil {
		t.Fatalf("second Backup: %v", err)
	}

	copyStore, err := Open(dest, Options{})
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer copyStore.Close()

	got, err := copyStore.Read(ctx, "users/a/id")
	if err != nil || string(got) != `"u1"` {
		t.Errorf("backup read = %s, %v", got, err)
	}
}
