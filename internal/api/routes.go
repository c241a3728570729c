package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/changes", h.Changes)
			r.Get("/snapshot", h.Snapshot)
			r.Get("/leaderboard", h.Leaderboard)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Delete("/", h.ClearUsers)
				r.Get("/{id}", h.GetUser)
				r.Patch("/{id}", h.UpdateUser)
				r.Get("/{id}/profile", h.Profile)
				r.With(h.idempotencyMiddleware).Post("/{id}/daily-challenge", h.ClaimDailyChallenge)
			})

			r.Route("/goals", func(r chi.Router) {
				r.Get("/", h.ListGoals)
				r.Post("/", h.CreateGoal)
				r.Get("/{id}", h.GetGoal)
				r.Patch("/{id}", h.UpdateGoal)
				r.Delete("/{id}", h.DeleteGoal)
				r.Put("/{id}/visibility", h.SetVisibility)

				r.Group(func(r chi.Router) {
					r.Use(h.idempotencyMiddleware)
					r.Post("/{id}/complete", h.CompleteGoal)
					r.Post("/{id}/incomplete", h.MarkIncomplete)
					r.Post("/{id}/bets", h.PlaceBet)
				})
			})
		})
	})

	return r
}
