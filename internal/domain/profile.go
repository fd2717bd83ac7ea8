package domain

import (
	"time"
	_ "time/tzdata" // user timezones must resolve on minimal images
)

// DateLayout is the civil-date layout used for streak bookkeeping.
const DateLayout = "2006-01-02"

// Profile is the gamification subject for a user.
type Profile struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name"`
	XP               int       `json:"xp"`
	Level            int       `json:"level"`
	StreakCount      int       `json:"streak_count"`
	StreakLastActive string    `json:"streak_last_active,omitempty"`
	Timezone         string    `json:"timezone"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Location resolves the profile timezone, falling back to def and then UTC.
func (p *Profile) Location(def string) *time.Location {
	for _, name := range []string{p.Timezone, def} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Level is one row of the static level table.
type Level struct {
	Level int    `json:"level" yaml:"level"`
	MinXP int    `json:"min_xp" yaml:"min_xp"`
	Title string `json:"title" yaml:"title"`
	Icon  string `json:"icon" yaml:"icon"`
}

// XPSource classifies ledger entries.
type XPSource string

const (
	SourceLesson        XPSource = "lesson"
	SourceChecklist     XPSource = "checklist"
	SourceStageComplete XPSource = "stage_complete"
	SourceArtifact      XPSource = "artifact"
	SourceAchievement   XPSource = "achievement"
	SourceStreak        XPSource = "streak"
	SourceDailyQuest    XPSource = "daily_quest"
)

// XPTransaction is an append-only ledger entry.
type XPTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"`
	Source      XPSource  `json:"source"`
	SourceID    string    `json:"source_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
