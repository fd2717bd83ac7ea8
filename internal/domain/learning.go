package domain

import "time"

// Lesson is a static lesson catalog entry.
type Lesson struct {
	ID        string   `json:"id" yaml:"id"`
	Stage     StageKey `json:"stage" yaml:"stage"`
	Title     string   `json:"title" yaml:"title"`
	Summary   string   `json:"summary" yaml:"summary"`
	XPReward  int      `json:"xp_reward" yaml:"xp_reward"`
	SortOrder int      `json:"sort_order" yaml:"sort_order"`
}

// PitchSession is one pitch-training run.
type PitchSession struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProjectID  string    `json:"project_id,omitempty"`
	Score      int       `json:"score"`
	Feedback   string    `json:"feedback,omitempty"`
	HasResults bool      `json:"has_results"`
	CreatedAt  time.Time `json:"created_at"`
}
