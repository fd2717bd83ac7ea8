// Package learning serves the lesson catalog and pitch-training sessions.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/google/uuid"
)

// Gamifier runs the XP and achievement side effects of an activity.
type Gamifier interface {
	Action(ctx context.Context, req gamification.ActionRequest) (*gamification.ActionResult, error)
	CheckAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error)
}

// Suggestion is the next lesson to take in a stage.
type Suggestion struct {
	Stage        domain.StageKey `json:"stage"`
	Lesson       *domain.Lesson  `json:"lesson,omitempty"`
	Completed    int             `json:"completedInStage"`
	Total        int             `json:"totalInStage"`
	AllCompleted bool            `json:"allCompleted"`
}

// LessonResult reports a lesson completion.
type LessonResult struct {
	LessonID          string                   `json:"lessonId"`
	FirstCompletion   bool                     `json:"firstCompletion"`
	XP                *gamification.XPResult   `json:"xpResult,omitempty"`
	Unlocked          []domain.UserAchievement `json:"unlockedAchievements,omitempty"`
	GamificationError string                   `json:"gamificationError,omitempty"`
}

// PitchResult reports a stored pitch-training session.
type PitchResult struct {
	Session  *domain.PitchSession     `json:"session"`
	Unlocked []domain.UserAchievement `json:"unlockedAchievements,omitempty"`
}

// Options configures a Service.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service implements lesson and pitch-training activities.
type Service struct {
	repo     store.Repository
	gamifier Gamifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service.
func New(repo store.Repository, gamifier Gamifier, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{repo: repo, gamifier: gamifier, metrics: opts.Metrics, logger: opts.Logger, now: opts.Clock}
}

// Suggest returns the first lesson of stage, by sort order, the user has not
// completed. An empty stage means the active project's stage, or idea.
func (s *Service) Suggest(ctx context.Context, userID string, stage domain.StageKey) (*Suggestion, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if stage == "" {
		stage = domain.StageIdea
		p, err := s.repo.GetActiveProject(ctx, userID)
		switch {
		case err == nil:
			stage = p.Stage
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("load active project: %w", err)
		}
	}
	if !stage.Valid() {
		return nil, domain.Invalid(fmt.Sprintf("unknown stage %q", stage))
	}

	lessons, err := s.repo.ListLessons(ctx, stage)
	if err != nil {
		return nil, err
	}
	done, err := s.repo.CompletedLessonIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Suggestion{Stage: stage, Total: len(lessons)}
	for i := range lessons {
		if slices.Contains(done, lessons[i].ID) {
			out.Completed++
			continue
		}
		if out.Lesson == nil {
			out.Lesson = &lessons[i]
		}
	}
	out.AllCompleted = out.Lesson == nil
	return out, nil
}

// CompleteLesson records the lesson once. Only the first completion grants
// the lesson's XP.
func (s *Service) CompleteLesson(ctx context.Context, userID, lessonID string) (*LessonResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	lesson, err := s.repo.GetLesson(ctx, strings.TrimSpace(lessonID))
	if err != nil {
		return nil, err
	}

	first, err := s.repo.CompleteLesson(ctx, userID, lesson.ID, s.now())
	if err != nil {
		return nil, err
	}
	res := &LessonResult{LessonID: lesson.ID, FirstCompletion: first}
	if !first || s.gamifier == nil {
		return res, nil
	}
	s.logger.Info("Lesson completed", "user_id", userID, "lesson_id", lesson.ID)

	out, err := s.gamifier.Action(ctx, gamification.ActionRequest{
		UserID:      userID,
		Amount:      lesson.XPReward,
		Source:      domain.SourceLesson,
		SourceID:    lesson.ID,
		Description: "Lesson: " + lesson.Title,
	})
	if out != nil {
		res.XP = out.XP
		res.Unlocked = out.Unlocked
	}
	if err != nil {
		s.metrics.RecordGamificationFailure(string(domain.SourceLesson))
		s.logger.Error("Lesson reward failed", "user_id", userID, "lesson_id", lesson.ID, "error", err)
		res.GamificationError = err.Error()
	}
	return res, nil
}

// RecordPitchSession stores a pitch-training run and re-evaluates achievements.
func (s *Service) RecordPitchSession(ctx context.Context, userID string, session domain.PitchSession) (*PitchResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if session.Score < 0 || session.Score > 100 {
		return nil, domain.Invalid("score must be between 0 and 100")
	}
	if session.ProjectID != "" {
		p, err := s.repo.GetProject(ctx, session.ProjectID)
		if err != nil {
			return nil, err
		}
		if p.OwnerID != userID {
			return nil, domain.NotFound("project", session.ProjectID)
		}
	}

	session.ID = uuid.NewString()
	session.UserID = userID
	session.CreatedAt = s.now()
	if err := s.repo.InsertPitchSession(ctx, &session); err != nil {
		return nil, err
	}
	s.logger.Info("Pitch session recorded", "user_id", userID, "score", session.Score, "has_results", session.HasResults)

	res := &PitchResult{Session: &session}
	if s.gamifier == nil {
		return res, nil
	}
	unlocked, err := s.gamifier.CheckAchievements(ctx, userID)
	if err != nil {
		s.metrics.RecordGamificationFailure("achievements")
		s.logger.Error("Achievement check after pitch session failed", "user_id", userID, "error", err)
	}
	res.Unlocked = unlocked
	return res, nil
}
