package api

import (
	"net/http"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SuggestLesson returns the next lesson for ?stage=, or the active project's stage.
func (h *Handler) SuggestLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var stage domain.StageKey
	if raw := r.URL.Query().Get("stage"); raw != "" {
		s, err := domain.ParseStage(raw)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		stage = s
	}
	s, err := h.learning.Suggest(r.Context(), userID, stage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s)
}

// CompleteLesson marks a lesson done.
func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := h.learning.CompleteLesson(r.Context(), userID, chi.URLParam(r, "lessonID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

type pitchSessionRequest struct {
	ProjectID  string `json:"project_id"`
	Score      int    `json:"score"`
	Feedback   string `json:"feedback"`
	HasResults bool   `json:"has_results"`
}

// RecordPitchSession stores a pitch-training run.
func (h *Handler) RecordPitchSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req pitchSessionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.learning.RecordPitchSession(r.Context(), userID, domain.PitchSession{
		ProjectID:  req.ProjectID,
		Score:      req.Score,
		Feedback:   req.Feedback,
		HasResults: req.HasResults,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, res)
}
