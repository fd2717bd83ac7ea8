package api

import (
	"context"
	"net/http"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/progress"
	"github.com/go-chi/chi/v5"
)

// ChecklistView is a stage's checklist definitions.
type ChecklistView struct {
	Stage domain.StageKey        `json:"stage"`
	Items []domain.ChecklistItem `json:"items"`
}

// GetActiveProject returns the caller's active project.
func (h *Handler) GetActiveProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.engine.ActiveProject(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

// GetChecklist returns the checklist definitions of a stage.
func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	stage, err := domain.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.engine.Checklist(r.Context(), stage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, ChecklistView{Stage: stage, Items: items})
}

type itemFunc func(ctx context.Context, userID, projectID string, stage domain.StageKey, itemKey string) (*progress.Result, error)

func (h *Handler) runItem(w http.ResponseWriter, r *http.Request, fn itemFunc) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := fn(r.Context(), userID, chi.URLParam(r, "projectID"),
		domain.StageKey(chi.URLParam(r, "stage")), chi.URLParam(r, "itemKey"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// ToggleItem flips a checklist item.
func (h *Handler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	h.runItem(w, r, h.engine.ToggleChecklistItem)
}

// CompleteItem marks a checklist item done.
func (h *Handler) CompleteItem(w http.ResponseWriter, r *http.Request) {
	h.runItem(w, r, h.engine.CompleteChecklistItem)
}

// ReopenStage flags a stage for rework.
func (h *Handler) ReopenStage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := h.engine.ReopenStage(r.Context(), userID, chi.URLParam(r, "projectID"),
		domain.StageKey(chi.URLParam(r, "stage")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}
