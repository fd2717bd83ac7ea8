package domain

import "time"

// CriteriaType names an achievement rule.
type CriteriaType string

const (
	CriteriaProjectCount           CriteriaType = "project_count"
	CriteriaStageReached           CriteriaType = "stage_reached"
	CriteriaBMCBlocksFilled        CriteriaType = "bmc_blocks_filled"
	CriteriaLevelReached           CriteriaType = "level_reached"
	CriteriaStreak                 CriteriaType = "streak"
	CriteriaLessonCount            CriteriaType = "lesson_count"
	CriteriaPitchTrainingCompleted CriteriaType = "pitch_training_completed"
)

// Criteria is a typed unlock rule. Value is a number for counters and a
// stage key for stage_reached.
type Criteria struct {
	Type  CriteriaType `json:"type" yaml:"type"`
	Value string       `json:"value" yaml:"value"`
}

// Achievement is a static achievement definition.
type Achievement struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Icon        string   `json:"icon" yaml:"icon"`
	XPReward    int      `json:"xp_reward" yaml:"xp_reward"`
	Criteria    Criteria `json:"criteria" yaml:"criteria"`
}

// UserAchievement joins an achievement with a user's earned state.
type UserAchievement struct {
	Achievement
	UserID   string     `json:"user_id"`
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// StreakFreeze records a spent weekly freeze.
type StreakFreeze struct {
	UserID    string    `json:"user_id"`
	WeekStart string    `json:"week_start"`
	UsedAt    time.Time `json:"used_at"`
}
