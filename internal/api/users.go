package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procasteam/procas/internal/progress"
	"github.com/procasteam/procas/internal/types"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// ListUsers handles GET /api/v1/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetAllUsers(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser handles POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in types.NewUser
	if !decodeJSON(w, r, &in, false) {
		return
	}
	user, err := h.users.AddUser(r.Context(), in)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// ClearUsers handles DELETE /api/v1/users.
func (h *Handler) ClearUsers(w http.ResponseWriter, r *http.Request) {
	if err := h.users.ClearAllUsers(r.Context()); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser handles PATCH /api/v1/users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd types.UserUpdate
	if !decodeJSON(w, r, &upd, false) {
		return
	}
	user, err := h.users.UpdateUser(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Profile handles GET /api/v1/users/{id}/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.users.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	goals, err := h.goals.GetUserGoals(ctx, user.ID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	users, err := h.users.GetAllUsers(ctx)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress.BuildProfile(*user, goals, users, h.now()))
}

// ClaimDailyChallenge handles POST /api/v1/users/{id}/daily-challenge.
func (h *Handler) ClaimDailyChallenge(w http.ResponseWriter, r *http.Request) {
	user, err := h.settlement.ClaimDailyChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Leaderboard handles GET /api/v1/leaderboard?limit=.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.ranker.Top(r.Context(), limit)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
