package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/procasteam/procas/internal/docstore"
	"github.com/procasteam/procas/internal/leaderboard"
	"github.com/procasteam/procas/internal/records"
	"github.com/procasteam/procas/internal/settlement"
	"github.com/procasteam/procas/internal/snapshot"
	"github.com/procasteam/procas/internal/types"
)

const (
	// DefaultChangesLimit is used when a changes request has no limit.
	DefaultChangesLimit = 100

	// MaxChangesLimit caps the limit of a changes request.
	MaxChangesLimit = 1000

	maxBodyBytes = 1 << 20
)

// Store is the document store surface used directly by handlers.
type Store interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context, collection string) (int64, error)
	Changes(ctx context.Context, afterSeq int64, limit int) ([]docstore.Change, error)
	LatestSequence(ctx context.Context) (int64, error)
	CheckIdempotency(ctx context.Context, key string) (*docstore.IdempotentResponse, bool, error)
	RecordIdempotency(ctx context.Context, key string, status int, body []byte, ttl time.Duration) error
}

// Deps holds everything a Handler serves from.
type Deps struct {
	Store          Store
	Users          *records.Users
	Goals          *records.Goals
	Settlement     *settlement.Service
	Ranker         leaderboard.Ranker
	Uploader       snapshot.Uploader
	APIKey         string
	Version        string
	IdempotencyTTL time.Duration
}

// Handler implements the API handlers.
type Handler struct {
	store          Store
	users          *records.Users
	goals          *records.Goals
	settlement     *settlement.Service
	ranker         leaderboard.Ranker
	uploader       snapshot.Uploader
	apiKey         string
	version        string
	idempotencyTTL time.Duration
	now            func() time.Time
}

// NewHandler creates a Handler. A nil Uploader behaves as unconfigured storage.
func NewHandler(d Deps) *Handler {
	uploader := d.Uploader
	if uploader == nil {
		uploader = snapshot.NoopUploader{}
	}
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{
		store:          d.Store,
		users:          d.Users,
		goals:          d.Goals,
		settlement:     d.Settlement,
		ranker:         d.Ranker,
		uploader:       uploader,
		apiKey:         d.APIKey,
		version:        d.Version,
		idempotencyTTL: ttl,
		now:            time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// decodeJSON reads a JSON body into v. An empty body is allowed when
// optional is set. Failures are written as 400 and reported as false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
	return false
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := types.HealthResponse{Status: "healthy", Version: h.version}

	err := h.store.Ping(ctx)
	if err == nil {
		resp.Users, err = h.store.Count(ctx, "users")
	}
	if err == nil {
		resp.Goals, err = h.store.Count(ctx, "goals")
	}
	if err == nil {
		resp.LatestSeq, err = h.store.LatestSequence(ctx)
	}
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		resp = types.HealthResponse{Status: "unavailable", Version: h.version}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ChangesResponse is a page of the change log.
type ChangesResponse struct {
	Changes        []docstore.Change `json:"changes"`
	LastSequence   int64             `json:"last_sequence"`
	LatestSequence int64             `json:"latest_sequence"`
	HasMore        bool              `json:"has_more"`
}

// Changes handles GET /api/v1/changes?after=&limit=.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	after, limit, err := parseChangesQuery(r)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	changes, err := h.store.Changes(ctx, after, limit)
	if err != nil {
		MapError(w, r, err)
		return
	}
	latest, err := h.store.LatestSequence(ctx)
	if err != nil {
		MapError(w, r, err)
		return
	}

	last := after
	if len(changes) > 0 {
		last = changes[len(changes)-1].Sequence
	}
	if changes == nil {
		changes = []docstore.Change{}
	}

	writeJSON(w, http.StatusOK, ChangesResponse{
		Changes:        changes,
		LastSequence:   last,
		LatestSequence: latest,
		HasMore:        len(changes) == limit && last < latest,
	})
}

func parseChangesQuery(r *http.Request) (int64, int, error) {
	var after int64
	if s := r.URL.Query().Get("after"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, errors.New("invalid after parameter: must be a non-negative integer")
		}
		after = v
	}

	limit, err := parseLimit(r, DefaultChangesLimit, MaxChangesLimit)
	if err != nil {
		return 0, 0, err
	}
	return after, limit, nil
}

// Snapshot handles GET /api/v1/snapshot with a pre-signed download URL.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	url, expiry, err := h.uploader.PresignedURL(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SnapshotResponse{URL: url, ExpiresAt: expiry})
}

// parseLimit reads a positive ?limit= capped at max, defaulting to def.
func parseLimit(r *http.Request, def, max int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, errors.New("invalid limit parameter: must be a positive integer")
	}
	return min(v, max), nil
}
