package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/store"
)

// Snapshot is the set of user statistics achievement criteria are checked against.
type Snapshot struct {
	ProjectCount           int
	StagesReached          map[domain.StageKey]bool
	BMCBlocksFilled        int
	Level                  int
	Streak                 int
	LessonCount            int
	PitchTrainingCompleted bool
}

// Evaluate reports whether c holds for s. Unknown types and malformed
// values evaluate to false.
func Evaluate(c domain.Criteria, s Snapshot) bool {
	switch c.Type {
	case domain.CriteriaStageReached:
		return s.StagesReached[domain.StageKey(strings.TrimSpace(c.Value))]
	case domain.CriteriaPitchTrainingCompleted:
		return s.PitchTrainingCompleted
	}

	n, err := strconv.Atoi(strings.TrimSpace(c.Value))
	if err != nil {
		return false
	}
	switch c.Type {
	case domain.CriteriaProjectCount:
		return s.ProjectCount >= n
	case domain.CriteriaBMCBlocksFilled:
		return s.BMCBlocksFilled >= n
	case domain.CriteriaLevelReached:
		return s.Level >= n
	case domain.CriteriaStreak:
		return s.Streak >= n
	case domain.CriteriaLessonCount:
		return s.LessonCount >= n
	default:
		return false
	}
}

// Evaluator unlocks achievements whose criteria are newly satisfied.
type Evaluator struct {
	repo    store.Repository
	ledger  *Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     Clock
}

// Snapshot gathers the user's current statistics.
func (e *Evaluator) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	profile, err := e.repo.GetProfile(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	projects, err := e.repo.ListProjects(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load projects: %w", err)
	}
	lessons, err := e.repo.CountCompletedLessons(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	pitched, err := e.repo.HasPitchResults(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		ProjectCount:           len(projects),
		StagesReached:          make(map[domain.StageKey]bool),
		Level:                  profile.Level,
		Streak:                 profile.StreakCount,
		LessonCount:            lessons,
		PitchTrainingCompleted: pitched,
	}
	for _, p := range projects {
		for _, stage := range p.StagesReached() {
			s.StagesReached[stage] = true
		}
	}
	// Canvas progress is measured on the first project only.
	if len(projects) > 0 {
		s.BMCBlocksFilled = projects[0].Artifacts.BMCFilled()
	}
	return s, nil
}

// CheckAchievements evaluates every unearned achievement and records the ones
// now satisfied. Rewards are granted through the ledger.
func (e *Evaluator) CheckAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	all, err := e.repo.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	snap, err := e.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []domain.UserAchievement
	for _, ua := range all {
		if ua.Earned || !Evaluate(ua.Criteria, snap) {
			continue
		}
		at := e.now()
		inserted, err := e.repo.EarnAchievement(ctx, userID, ua.ID, at)
		if err != nil {
			return unlocked, fmt.Errorf("earn achievement %s: %w", ua.ID, err)
		}
		if !inserted {
			continue
		}

		ua.Earned = true
		ua.EarnedAt = &at
		unlocked = append(unlocked, ua)
		e.metrics.RecordAchievement(ua.ID)
		e.logger.Info("Achievement unlocked", "user_id", userID, "achievement", ua.ID)

		if ua.XPReward > 0 {
			if _, err := e.ledger.AwardXP(ctx, userID, ua.XPReward, domain.SourceAchievement, ua.ID,
				"Achievement: "+ua.Title); err != nil {
				e.metrics.RecordGamificationFailure("achievement_reward")
				e.logger.Error("Failed to grant achievement reward",
					"user_id", userID, "achievement", ua.ID, "error", err)
			}
		}
	}
	return unlocked, nil
}

// List returns every achievement with the user's earned state.
func (e *Evaluator) List(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	return e.repo.ListUserAchievements(ctx, userID)
}
