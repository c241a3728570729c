package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Operation values recorded in the change log.
const (
	OperationUpsert = "upsert"
	OperationDelete = "delete"
)

// Change is one committed write.
type Change struct {
	Sequence  int64           `json:"sequence"`
	Path      string          `json:"path"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
}

func (t *txn) logChange(ctx context.Context, c Change) error {
	var payload any
	if len(c.Payload) > 0 {
		payload = string(c.Payload)
	}
	result, err := t.q.ExecContext(ctx, `
		INSERT INTO change_log (path, operation, payload, version, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.Path, c.Operation, payload, c.Version, c.CreatedAt.Format(timeFormat))
	if err != nil {
		return unavailable("append change log", err)
	}
	if c.Sequence, err = result.LastInsertId(); err != nil {
		return unavailable("append change log", err)
	}
	t.changes = append(t.changes, c)
	return nil
}

// Changes returns change-log entries with sequence > afterSeq, oldest first.
func (s *Store) Changes(ctx context.Context, afterSeq int64, limit int) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, path, operation, payload, version, created_at
		FROM change_log
		WHERE sequence > ?
		ORDER BY sequence ASC
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, unavailable("query change log", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c         Change
			payload   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.Sequence, &c.Path, &c.Operation, &payload, &c.Version, &createdAt); err != nil {
			return nil, unavailable("scan change log entry", err)
		}
		if payload.Valid {
			c.Payload = json.RawMessage(payload.String)
		}
		var parseErr error
		if c.CreatedAt, parseErr = time.Parse(timeFormat, createdAt); parseErr != nil {
			slog.Warn("change_log: failed to parse created_at", "value", createdAt, "error", parseErr)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query change log", err)
	}
	return changes, nil
}

// LatestSequence returns the highest change-log sequence, or 0 when empty.
func (s *Store) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM change_log`).Scan(&seq); err != nil {
		return 0, unavailable("get latest sequence", err)
	}
	return seq.Int64, nil
}

// Compact deletes change-log entries created before cutoff and returns how
// many were removed.
func (s *Store) Compact(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM change_log WHERE created_at < ?`, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, unavailable("compact change log", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("compact change log: %w", err)
	}
	return n, nil
}
