package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the API routes. auth guards everything under /api.
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/ready", h.Ready)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth)

		r.Get("/me", h.GetMe)
		r.Get("/projects/active", h.GetActiveProject)
		r.Get("/checklist/{stage}", h.GetChecklist)
		r.Route("/projects/{projectID}/stages/{stage}", func(r chi.Router) {
			r.Post("/items/{itemKey}/toggle", h.ToggleItem)
			r.Post("/items/{itemKey}/complete", h.CompleteItem)
			r.Post("/reopen", h.ReopenStage)
		})

		r.Get("/achievements", h.ListAchievements)
		r.Get("/xp/history", h.XPHistory)
		r.Post("/streak", h.UpdateStreak)
		r.Get("/streak/freeze", h.CheckStreakFreeze)
		r.Post("/streak/freeze", h.UseStreakFreeze)

		r.Get("/lessons/suggestion", h.SuggestLesson)
		r.Post("/lessons/{lessonID}/complete", h.CompleteLesson)
		r.Post("/pitch-sessions", h.RecordPitchSession)

		r.Get("/tools", h.ListTools)
		r.Post("/tools/{name}", h.ExecuteTool)
	})
}

// Ready reports whether the database is reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
