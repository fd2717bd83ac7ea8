package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/store"
)

// ActionRequest describes one XP-granting user action.
type ActionRequest struct {
	UserID      string
	Amount      int
	Source      domain.XPSource
	SourceID    string
	Description string
}

// ActionResult is the XP outcome plus the achievements unlocked by the action.
type ActionResult struct {
	XP       *XPResult                `json:"xpResult"`
	Unlocked []domain.UserAchievement `json:"unlockedAchievements"`
}

// Orchestrator grants XP and then re-evaluates achievements.
type Orchestrator struct {
	ledger    *Ledger
	evaluator *Evaluator
	repo      store.Repository
	window    time.Duration
	logger    *slog.Logger
	now       Clock
}

// Action runs the ledger grant and a full achievement re-evaluation. The
// unlocked list holds every earned achievement whose earned_at lies within the
// unlock window, so concurrent actions of the same user may both report it.
func (o *Orchestrator) Action(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	xp, err := o.ledger.AwardXP(ctx, req.UserID, req.Amount, req.Source, req.SourceID, req.Description)
	if err != nil {
		return nil, fmt.Errorf("award xp: %w", err)
	}
	res := &ActionResult{XP: xp, Unlocked: []domain.UserAchievement{}}

	if _, err := o.evaluator.CheckAchievements(ctx, req.UserID); err != nil {
		return res, fmt.Errorf("check achievements: %w", err)
	}

	all, err := o.repo.ListUserAchievements(ctx, req.UserID)
	if err != nil {
		return res, fmt.Errorf("load achievements: %w", err)
	}
	cutoff := o.now().Add(-o.window)
	for _, ua := range all {
		if ua.Earned && ua.EarnedAt != nil && !ua.EarnedAt.Before(cutoff) {
			res.Unlocked = append(res.Unlocked, ua)
		}
	}
	if len(res.Unlocked) > 0 {
		o.logger.Debug("Action unlocked achievements", "user_id", req.UserID, "count", len(res.Unlocked))
	}
	return res, nil
}

// CheckAchievements re-evaluates achievements without granting XP, for
// actions such as project creation that carry no reward of their own.
func (o *Orchestrator) CheckAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return o.evaluator.CheckAchievements(ctx, userID)
}
