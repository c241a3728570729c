// Package docstore is a schemaless JSON document tree persisted in SQLite.
//
// Documents live at "{collection}/{key}". Deeper paths address fields inside
// a document. Reading a bare collection returns an object of key to document.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Tx is the read/write surface shared by the Store and by a transaction.
type Tx interface {
	Read(ctx context.Context, path string) (json.RawMessage, error)
	Write(ctx context.Context, path string, value json.RawMessage) error
}

// Options tunes transaction retries. Zero values fall back to defaults.
type Options struct {
	MaxRetries uint64
	RetryBase  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = 5
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 20 * time.Millisecond
	}
	return o
}

// Store is the SQLite-backed document tree.
type Store struct {
	db   *sql.DB
	opts Options
	subs *broker
	now  func() time.Time
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the store at dbPath, applies pragmas and runs
// migrations. ":memory:" gives a private in-memory tree.
func Open(dbPath string, opts Options) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:   db,
		opts: opts.withDefaults(),
		subs: newBroker(),
		now:  time.Now,
	}, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Close stops every live subscription and closes the database.
func (s *Store) Close() error {
	s.subs.closeAll()
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// GenerateKey returns a new opaque, time-ordered document key.
func GenerateKey() string {
	return ulid.Make().String()
}

// Read returns the JSON stored at path, or ErrAbsent.
func (s *Store) Read(ctx context.Context, path string) (json.RawMessage, error) {
	return readPath(ctx, s.db, path)
}

// Write stores value at path. A nil or JSON null value deletes the path.
func (s *Store) Write(ctx context.Context, path string, value json.RawMessage) error {
	return s.Transact(ctx, func(tx Tx) error {
		return tx.Write(ctx, path, value)
	})
}

// ReadVersioned returns a document and its version. Only document paths
// ("{collection}/{key}") carry versions.
func (s *Store) ReadVersioned(ctx context.Context, path string) (json.RawMessage, int64, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, 0, err
	}
	if p.key == "" || len(p.field) > 0 {
		return nil, 0, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return readDoc(ctx, s.db, p)
}

// CompareAndSwap writes value at a document path only if its version still
// equals expected. An expected version of 0 means the document must not exist.
func (s *Store) CompareAndSwap(ctx context.Context, path string, expected int64, value json.RawMessage) error {
	p, err := parsePath(path)
	if err != nil {
		return err
	}
	if p.key == "" || len(p.field) > 0 {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	return s.Transact(ctx, func(tx Tx) error {
		t := tx.(*txn)
		_, current, err := readDoc(ctx, t.q, p)
		if err != nil && !errors.Is(err, ErrAbsent) {
			return err
		}
		if current != expected {
			return fmt.Errorf("%s: expected version %d, found %d: %w", path, expected, current, ErrVersionConflict)
		}
		return t.Write(ctx, path, value)
	})
}

// Transact runs fn inside one SQL transaction. Either every write fn makes
// is committed or none is. Lock contention is retried with exponential
// backoff, so fn may run more than once and must not have side effects
// outside tx. fn must not call back into the Store.
func (s *Store) Transact(ctx context.Context, fn func(tx Tx) error) error {
	var committed []Change

	backoff := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewExponential(s.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		changes, err := s.runTx(ctx, fn)
		if err != nil {
			if isBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		committed = changes
		return nil
	})
	if err != nil {
		return err
	}

	s.subs.publish(committed)
	return nil
}

func (s *Store) runTx(ctx context.Context, fn func(tx Tx) error) ([]Change, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin transaction", err)
	}
	defer sqlTx.Rollback()

	t := &txn{q: sqlTx, now: s.now}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, unavailable("commit transaction", err)
	}
	return t.changes, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, unavailable("count documents", err)
	}
	return n, nil
}

// txn is the Tx handed to Transact callbacks.
type txn struct {
	q       querier
	now     func() time.Time
	changes []Change
}

func (t *txn) Read(ctx context.Context, path string) (json.RawMessage, error) {
	return readPath(ctx, t.q, path)
}

func (t *txn) Write(ctx context.Context, path string, value json.RawMessage) error {
	p, err := parsePath(path)
	if err != nil {
		return err
	}
	if isNull(value) {
		return t.remove(ctx, p)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return fmt.Errorf("%w at %s: %v", ErrInvalidValue, p, err)
	}
	compacted := buf.Bytes()

	switch {
	case p.key == "":
		return t.replaceCollection(ctx, p.collection, compacted)
	case len(p.field) > 0:
		doc, _, err := readDoc(ctx, t.q, p)
		if errors.Is(err, ErrAbsent) {
			doc = json.RawMessage(`{}`)
		} else if err != nil {
			return err
		}
		updated, err := sjson.SetRawBytes(doc, p.fieldPath(), compacted)
		if err != nil {
			return fmt.Errorf("%w at %s: %v", ErrInvalidValue, p, err)
		}
		return t.upsert(ctx, p.collection, p.key, updated)
	default:
		return t.upsert(ctx, p.collection, p.key, compacted)
	}
}

func (t *txn) replaceCollection(ctx context.Context, collection string, value []byte) error {
	var children map[string]json.RawMessage
	if err := json.Unmarshal(value, &children); err != nil || children == nil {
		return fmt.Errorf("%w: collection %s must be written as an object", ErrInvalidValue, collection)
	}
	if err := t.remove(ctx, docPath{collection: collection}); err != nil {
		return err
	}
	for key, child := range children {
		if !segmentPattern.MatchString(key) {
			return fmt.Errorf("%w: key %q", ErrInvalidPath, key)
		}
		if isNull(child) {
			continue
		}
		if err := t.upsert(ctx, collection, key, child); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) upsert(ctx context.Context, collection, key string, value []byte) error {
	now := t.now().UTC()
	stamp := now.Format(timeFormat)

	var version int64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO documents (collection, doc_key, value, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(collection, doc_key) DO UPDATE SET
			value = excluded.value,
			version = documents.version + 1,
			updated_at = excluded.updated_at
		RETURNING version
	`, collection, key, string(value), stamp, stamp).Scan(&version)
	if err != nil {
		return unavailable("upsert document", err)
	}

	return t.logChange(ctx, Change{
		Path:      collection + "/" + key,
		Operation: OperationUpsert,
		Payload:   json.RawMessage(value),
		Version:   version,
		CreatedAt: now,
	})
}

func (t *txn) remove(ctx context.Context, p docPath) error {
	if len(p.field) > 0 {
		doc, _, err := readDoc(ctx, t.q, p)
		if errors.Is(err, ErrAbsent) {
			return nil
		}
		if err != nil {
			return err
		}
		if !gjson.GetBytes(doc, p.fieldPath()).Exists() {
			return nil
		}
		updated, err := sjson.DeleteBytes(doc, p.fieldPath())
		if err != nil {
			return fmt.Errorf("%w at %s: %v", ErrInvalidValue, p, err)
		}
		return t.upsert(ctx, p.collection, p.key, updated)
	}

	var (
		result sql.Result
		err    error
	)
	if p.key == "" {
		result, err = t.q.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, p.collection)
	} else {
		result, err = t.q.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND doc_key = ?`, p.collection, p.key)
	}
	if err != nil {
		return unavailable("delete documents", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete documents", err)
	}
	if n == 0 {
		return nil
	}

	return t.logChange(ctx, Change{
		Path:      p.String(),
		Operation: OperationDelete,
		CreatedAt: t.now().UTC(),
	})
}

func readPath(ctx context.Context, q querier, path string) (json.RawMessage, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if p.key == "" {
		return readCollection(ctx, q, p.collection)
	}

	doc, _, err := readDoc(ctx, q, p)
	if err != nil {
		return nil, err
	}
	if len(p.field) == 0 {
		return doc, nil
	}

	res := gjson.GetBytes(doc, p.fieldPath())
	if !res.Exists() || res.Type == gjson.Null {
		return nil, fmt.Errorf("%s: %w", path, ErrAbsent)
	}
	return json.RawMessage(res.Raw), nil
}

func readDoc(ctx context.Context, q querier, p docPath) (json.RawMessage, int64, error) {
	var (
		value   string
		version int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT value, version FROM documents WHERE collection = ? AND doc_key = ?`,
		p.collection, p.key,
	).Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%s: %w", p.documentPath(), ErrAbsent)
	}
	if err != nil {
		return nil, 0, unavailable("read document", err)
	}
	return json.RawMessage(value), version, nil
}

func readCollection(ctx context.Context, q querier, collection string) (json.RawMessage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT doc_key, value FROM documents WHERE collection = ? ORDER BY doc_key`, collection)
	if err != nil {
		return nil, unavailable("read collection", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, unavailable("scan document", err)
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		encodedKey, _ := json.Marshal(key)
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.WriteString(value)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read collection", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", collection, ErrAbsent)
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes()), nil
}

func isNull(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
