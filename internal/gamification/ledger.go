package gamification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/google/uuid"
)

// XPResult reports the effect of one grant.
type XPResult struct {
	NewXP         int  `json:"newXP"`
	LeveledUp     bool `json:"leveledUp"`
	NewLevel      int  `json:"newLevel"`
	PreviousLevel int  `json:"previousLevel"`
}

// Ledger appends XP grants and keeps the profile's xp and level in step.
type Ledger struct {
	repo    store.Repository
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     Clock
}

// AwardXP appends a ledger entry, increments the profile total and
// recomputes the level. Amounts are not validated.
func (l *Ledger) AwardXP(ctx context.Context, userID string, amount int, source domain.XPSource, sourceID, description string) (*XPResult, error) {
	profile, err := l.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	tx := &domain.XPTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Source:      source,
		SourceID:    sourceID,
		Description: description,
		CreatedAt:   l.now(),
	}
	if err := l.repo.AppendXP(ctx, tx); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	newXP, err := l.repo.AddXP(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("increment xp: %w", err)
	}

	levels, err := l.repo.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load level table: %w", err)
	}
	newLevel := LevelFor(levels, newXP)
	if newLevel != profile.Level {
		if err := l.repo.SetLevel(ctx, userID, newLevel); err != nil {
			return nil, fmt.Errorf("store level: %w", err)
		}
	}

	res := &XPResult{
		NewXP:         newXP,
		NewLevel:      newLevel,
		PreviousLevel: profile.Level,
		LeveledUp:     newLevel > profile.Level,
	}
	l.metrics.RecordXP(string(source), amount)
	if res.LeveledUp {
		l.metrics.RecordLevelUp()
		l.logger.Info("Level up", "user_id", userID, "previous_level", res.PreviousLevel, "new_level", res.NewLevel)
	}
	return res, nil
}

// History returns the newest ledger entries of the user.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	return l.repo.ListXP(ctx, userID, limit)
}

// LevelFor returns the highest level whose min_xp is at most xp, or 1 when
// no threshold matches. The table may be in any order.
func LevelFor(levels []domain.Level, xp int) int {
	best := -1
	level := 1
	for _, l := range levels {
		if l.MinXP <= xp && l.MinXP > best {
			best = l.MinXP
			level = l.Level
		}
	}
	return level
}
