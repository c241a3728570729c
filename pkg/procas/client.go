// Package procas is a Go client for the procas HTTP API. It declares its own
// wire types and depends on nothing inside the server module.
package procas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Config holds the client configuration.
type Config struct {
	BaseURL    string        // Server URL, e.g. http://localhost:8080
	APIKey     string        // Bearer token
	Timeout    time.Duration // Per-request timeout (default: 30 seconds)
	MaxRetries uint64        // Retries of 503 responses (default: 3)
}

// Client calls the procas API.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	maxRetries uint64
	retryBase  time.Duration
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryBase:  200 * time.Millisecond,
	}, nil
}

// APIError is a problem document returned by the server.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("procas: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("procas: %d %s", e.Status, e.Title)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Health returns the server health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser returns one user.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser adds a user.
func (c *Client) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/users", in, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns a user's level, statistics, achievements and rank.
func (c *Client) Profile(ctx context.Context, id string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id)+"/profile", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimDailyChallenge claims today's challenge for a user.
func (c *Client) ClaimDailyChallenge(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/daily-challenge", nil, uuid.NewString(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leaderboard returns the top limit users.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	if err := c.do(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(limit), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GoalFilter narrows ListGoals.
type GoalFilter struct {
	UserID string
	Public bool
	Today  bool
}

// ListGoals returns goals matching f.
func (c *Client) ListGoals(ctx context.Context, f GoalFilter) ([]Goal, error) {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("user", f.UserID)
	}
	if f.Public {
		q.Set("public", "true")
	}
	if f.Today {
		q.Set("today", "true")
	}
	path := "/goals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Goal
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateGoal adds a goal. Points are assigned by the server.
func (c *Client) CreateGoal(ctx context.Context, in NewGoal) (*Goal, error) {
	var out Goal
	if err := c.do(ctx, http.MethodPost, "/goals", in, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteGoal completes a goal. A non-empty evidenceURL takes the public
// completion path.
func (c *Client) CompleteGoal(ctx context.Context, id, evidenceURL string) (*Settlement, error) {
	var out Settlement
	body := completeRequest{EvidenceURL: evidenceURL}
	if err := c.do(ctx, http.MethodPost, "/goals/"+url.PathEscape(id)+"/complete", body, uuid.NewString(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkIncomplete fails a goal.
func (c *Client) MarkIncomplete(ctx context.Context, id string) (*Settlement, error) {
	var out Settlement
	if err := c.do(ctx, http.MethodPost, "/goals/"+url.PathEscape(id)+"/incomplete", nil, uuid.NewString(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceBet stakes points on a public goal.
func (c *Client) PlaceBet(ctx context.Context, goalID string, in NewBet) (*Goal, error) {
	var out Goal
	if err := c.do(ctx, http.MethodPost, "/goals/"+url.PathEscape(goalID)+"/bets", in, uuid.NewString(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangesPage is one page of the change log.
type ChangesPage struct {
	Changes        []Change `json:"changes"`
	LastSequence   int64    `json:"last_sequence"`
	LatestSequence int64    `json:"latest_sequence"`
	HasMore        bool     `json:"has_more"`
}

// Changes returns change-log entries after the given sequence.
func (c *Client) Changes(ctx context.Context, after int64, limit int) (*ChangesPage, error) {
	path := fmt.Sprintf("/changes?after=%d&limit=%d", after, limit)
	var out ChangesPage
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request. Settlement calls carry an idempotency key so a 503
// can be retried without applying twice.
func (c *Client) do(ctx context.Context, method, path string, body any, idemKey string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	if method != http.MethodGet && idemKey == "" {
		backoff = retry.WithMaxRetries(0, backoff)
	}

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			_ = json.Unmarshal(data, apiErr)
			apiErr.Status = resp.StatusCode
			if resp.StatusCode == http.StatusServiceUnavailable {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}
