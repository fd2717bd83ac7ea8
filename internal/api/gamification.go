package api

import (
	"net/http"
	"strconv"

	"github.com/ashureev/launchpad/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MeView is the caller's gamification profile.
type MeView struct {
	*domain.Profile
	NextLevelXP *int `json:"next_level_xp,omitempty"`
}

// GetMe returns the current user's profile.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	levels, err := h.repo.ListLevels(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, MeView{Profile: p, NextLevelXP: nextLevelXP(levels, p.XP)})
}

// nextLevelXP returns the smallest threshold above xp, or nil at the top level.
func nextLevelXP(levels []domain.Level, xp int) *int {
	var next *int
	for _, l := range levels {
		if l.MinXP > xp && (next == nil || l.MinXP < *next) {
			v := l.MinXP
			next = &v
		}
	}
	return next
}

// ListAchievements returns every achievement with the caller's earned state.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	list, err := h.gamify.Evaluator.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, list)
}

// XPHistory returns the caller's recent ledger entries, newest first.
func (h *Handler) XPHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	txs, err := h.gamify.Ledger.History(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.XPTransaction{}
	}
	JSON(w, http.StatusOK, txs)
}

// UpdateStreak records today's activity.
func (h *Handler) UpdateStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := h.gamify.Streaks.UpdateStreak(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// CheckStreakFreeze reports whether a freeze can be spent.
func (h *Handler) CheckStreakFreeze(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := h.gamify.Streaks.CheckStreakFreeze(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// UseStreakFreeze spends this week's freeze.
func (h *Handler) UseStreakFreeze(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := h.gamify.Streaks.UseStreakFreeze(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}
