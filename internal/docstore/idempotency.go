package docstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// IdempotentResponse is a stored response for a replayed request.
type IdempotentResponse struct {
	Status int
	Body   []byte
}

// CheckIdempotency returns the response recorded under key, if it has not expired.
func (s *Store) CheckIdempotency(ctx context.Context, key string) (*IdempotentResponse, bool, error) {
	var (
		resp      IdempotentResponse
		body      string
		expiresAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, response, expires_at FROM idempotency_keys WHERE idem_key = ?`, key,
	).Scan(&resp.Status, &body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("check idempotency", err)
	}

	expires, parseErr := time.Parse(timeFormat, expiresAt)
	if parseErr != nil {
		slog.Warn("idempotency: failed to parse expires_at", "value", expiresAt, "error", parseErr)
		return nil, false, nil
	}
	if !s.now().UTC().Before(expires) {
		return nil, false, nil
	}

	resp.Body = []byte(body)
	return &resp, true, nil
}

// RecordIdempotency stores a response under key for ttl. The first recorded
// response for a live key wins.
func (s *Store) RecordIdempotency(ctx context.Context, key string, status int, body []byte, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (idem_key, status, response, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(idem_key) DO UPDATE SET
			status = excluded.status,
			response = excluded.response,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		WHERE idempotency_keys.expires_at <= excluded.created_at
	`, key, status, string(body), now.Format(timeFormat), now.Add(ttl).Format(timeFormat))
	if err != nil {
		return unavailable("record idempotency", err)
	}
	return nil
}

// CleanExpiredIdempotency removes expired records and returns how many were deleted.
func (s *Store) CleanExpiredIdempotency(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at <= ?`, s.now().UTC().Format(timeFormat))
	if err != nil {
		return 0, unavailable("clean expired idempotency", err)
	}
	return result.RowsAffected()
}
