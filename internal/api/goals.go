package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procasteam/procas/internal/types"
)

// ListGoals handles GET /api/v1/goals?user=&public=&today=.
//
// today requires user. public lists every public goal and ignores user.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	userID := q.Get("user")

	public, err := parseBoolParam(q.Get("public"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid public parameter: must be a boolean")
		return
	}
	today, err := parseBoolParam(q.Get("today"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid today parameter: must be a boolean")
		return
	}

	var goals []types.Goal
	switch {
	case public:
		goals, err = h.goals.GetPublicGoals(ctx)
	case today:
		if userID == "" {
			WriteProblem(w, r, http.StatusBadRequest, "today requires the user parameter")
			return
		}
		goals, err = h.goals.GetTodayGoals(ctx, userID, h.now())
	case userID != "":
		goals, err = h.goals.GetUserGoals(ctx, userID)
	default:
		goals, err = h.goals.GetAllGoals(ctx)
	}
	if err != nil {
		MapError(w, r, err)
		return
	}
	if goals == nil {
		goals = []types.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func parseBoolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// CreateGoal handles POST /api/v1/goals.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var in types.NewGoal
	if !decodeJSON(w, r, &in, false) {
		return
	}
	goal, err := h.settlement.CreateGoal(r.Context(), in)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// GetGoal handles GET /api/v1/goals/{id}.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goals.GetGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// UpdateGoal handles PATCH /api/v1/goals/{id}.
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var upd types.GoalUpdate
	if !decodeJSON(w, r, &upd, false) {
		return
	}
	goal, err := h.goals.UpdateGoal(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /api/v1/goals/{id}.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.goals.DeleteGoal(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetVisibility handles PUT /api/v1/goals/{id}/visibility.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req types.VisibilityRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	goal, err := h.goals.SetGoalPublic(r.Context(), chi.URLParam(r, "id"), req.IsPublic)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// CompleteGoal handles POST /api/v1/goals/{id}/complete. A body with an
// evidence URL takes the public completion path.
func (h *Handler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	id := chi.URLParam(r, "id")
	var (
		result *types.Settlement
		err    error
	)
	if req.EvidenceURL != "" {
		result, err = h.settlement.CompletePublicGoal(r.Context(), id, req.EvidenceURL)
	} else {
		result, err = h.settlement.CompleteGoal(r.Context(), id)
	}
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// MarkIncomplete handles POST /api/v1/goals/{id}/incomplete.
func (h *Handler) MarkIncomplete(w http.ResponseWriter, r *http.Request) {
	result, err := h.settlement.MarkGoalAsIncomplete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PlaceBet handles POST /api/v1/goals/{id}/bets.
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var in types.NewBet
	if !decodeJSON(w, r, &in, false) {
		return
	}
	goal, err := h.settlement.AddBetToGoal(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}
