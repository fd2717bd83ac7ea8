// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/launchpad/internal/catalog"
	"github.com/ashureev/launchpad/internal/domain"
)

// ProjectStore persists projects and their progress/artifact blobs.
type ProjectStore interface {
	// GetProject retrieves a project by id. Returns domain.ErrNotFound if absent.
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)

	// GetActiveProject retrieves the owner's active project. Returns domain.ErrNotFound if none.
	GetActiveProject(ctx context.Context, ownerID string) (*domain.Project, error)

	// ListProjects returns every project of the owner, oldest first.
	ListProjects(ctx context.Context, ownerID string) ([]*domain.Project, error)

	// CreateProject inserts a project. An active project deactivates the
	// owner's previous active project in the same transaction.
	CreateProject(ctx context.Context, p *domain.Project) error

	// UpdateProgress writes stage and progress_data together if the row is
	// still at expectedVersion, returning the new version.
	UpdateProgress(ctx context.Context, projectID string, stage domain.StageKey, progress domain.ProgressData, expectedVersion int64) (int64, error)

	// UpdateArtifacts writes artifacts if the row is still at expectedVersion.
	UpdateArtifacts(ctx context.Context, projectID string, artifacts domain.Artifacts, expectedVersion int64) (int64, error)
}

// ProfileStore persists gamification profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// EnsureProfile inserts the profile unless one already exists.
	EnsureProfile(ctx context.Context, p *domain.Profile) error

	// AddXP atomically increments xp and returns the new total.
	AddXP(ctx context.Context, userID string, amount int) (int, error)

	SetLevel(ctx context.Context, userID string, level int) error
	SetStreak(ctx context.Context, userID string, count int, lastActive string) error
	SetStreakLastActive(ctx context.Context, userID string, lastActive string) error
	SetTimezone(ctx context.Context, userID string, timezone string) error
}

// LedgerStore is the append-only XP ledger.
type LedgerStore interface {
	AppendXP(ctx context.Context, tx *domain.XPTransaction) error

	// HasXP reports whether a grant with the given source and source id exists.
	HasXP(ctx context.Context, userID string, source domain.XPSource, sourceID string) (bool, error)

	// ListXP returns the newest entries first.
	ListXP(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error)
}

// AchievementStore persists earned achievements.
type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]domain.Achievement, error)

	// ListUserAchievements returns every definition joined with the user's earned state.
	ListUserAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error)

	// EarnAchievement records the unlock once; false means it was already earned.
	EarnAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)
}

// StreakStore persists weekly streak freezes.
type StreakStore interface {
	// InsertStreakFreeze records a freeze; false means the week was already used.
	InsertStreakFreeze(ctx context.Context, f domain.StreakFreeze) (bool, error)
	HasStreakFreeze(ctx context.Context, userID, weekStart string) (bool, error)
}

// ReferenceStore serves the static reference tables.
type ReferenceStore interface {
	// ListChecklistItems returns the stage's items ordered by sort_order.
	ListChecklistItems(ctx context.Context, stage domain.StageKey) ([]domain.ChecklistItem, error)

	// ListLevels returns the level table ordered by min_xp descending.
	ListLevels(ctx context.Context) ([]domain.Level, error)

	// ListLessons returns lessons of stage (all stages when empty) in sort order.
	ListLessons(ctx context.Context, stage domain.StageKey) ([]domain.Lesson, error)
	GetLesson(ctx context.Context, lessonID string) (*domain.Lesson, error)

	// SeedCatalog upserts every reference row from c.
	SeedCatalog(ctx context.Context, c *catalog.Catalog) error
}

// LearningStore persists lesson completions and pitch-training sessions.
type LearningStore interface {
	// CompleteLesson records a completion once; false means it already existed.
	CompleteLesson(ctx context.Context, userID, lessonID string, at time.Time) (bool, error)
	CompletedLessonIDs(ctx context.Context, userID string) ([]string, error)
	CountCompletedLessons(ctx context.Context, userID string) (int, error)
	InsertPitchSession(ctx context.Context, s *domain.PitchSession) error
	HasPitchResults(ctx context.Context, userID string) (bool, error)
}

// Repository defines the interface for persisting all launchpad data.
type Repository interface {
	ProjectStore
	ProfileStore
	LedgerStore
	AchievementStore
	StreakStore
	ReferenceStore
	LearningStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
