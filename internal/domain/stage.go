// Package domain contains core domain types for the launchpad service.
package domain

import (
	"fmt"
	"slices"
	"time"
)

// StageKey identifies one of the five ordered startup stages.
type StageKey string

const (
	StageIdea          StageKey = "idea"
	StageValidation    StageKey = "validation"
	StageBusinessModel StageKey = "business_model"
	StageMVP           StageKey = "mvp"
	StagePitch         StageKey = "pitch"
)

// Stages lists every stage in progression order.
var Stages = []StageKey{StageIdea, StageValidation, StageBusinessModel, StageMVP, StagePitch}

// ParseStage validates a raw stage name.
func ParseStage(s string) (StageKey, error) {
	k := StageKey(s)
	if !k.Valid() {
		return "", Invalid(fmt.Sprintf("unknown stage %q (expected one of idea, validation, business_model, mvp, pitch)", s))
	}
	return k, nil
}

// Valid reports whether k is one of the known stages.
func (k StageKey) Valid() bool {
	return slices.Contains(Stages, k)
}

// Index returns the position of k in the progression order, or -1.
func (k StageKey) Index() int {
	return slices.Index(Stages, k)
}

// Next returns the stage after k. ok is false for pitch and unknown stages.
func (k StageKey) Next() (StageKey, bool) {
	i := k.Index()
	if i < 0 || i+1 >= len(Stages) {
		return "", false
	}
	return Stages[i+1], true
}

// StageStatus is the lifecycle state of a single stage within a project.
type StageStatus string

const (
	StatusInProgress    StageStatus = "in_progress"
	StatusCompleted     StageStatus = "completed"
	StatusNeedsRevision StageStatus = "needs_revision"
)

// StageProgress records checklist completion for one stage of a project.
type StageProgress struct {
	Status         StageStatus `json:"status"`
	CompletedItems []string    `json:"completedItems"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

// NewStageProgress returns a fresh in-progress entry started at now.
func NewStageProgress(now time.Time) *StageProgress {
	started := now
	return &StageProgress{
		Status:         StatusInProgress,
		CompletedItems: []string{},
		StartedAt:      &started,
	}
}

// Has reports whether itemKey is recorded as completed.
func (p *StageProgress) Has(itemKey string) bool {
	return slices.Contains(p.CompletedItems, itemKey)
}

// Add appends itemKey if absent and reports whether it was added.
func (p *StageProgress) Add(itemKey string) bool {
	if p.Has(itemKey) {
		return false
	}
	p.CompletedItems = append(p.CompletedItems, itemKey)
	return true
}

// Remove drops itemKey and reports whether it was present.
func (p *StageProgress) Remove(itemKey string) bool {
	i := slices.Index(p.CompletedItems, itemKey)
	if i < 0 {
		return false
	}
	p.CompletedItems = slices.Delete(p.CompletedItems, i, i+1)
	return true
}

// Clone returns a deep copy.
func (p *StageProgress) Clone() *StageProgress {
	if p == nil {
		return nil
	}
	c := *p
	c.CompletedItems = slices.Clone(p.CompletedItems)
	if c.CompletedItems == nil {
		c.CompletedItems = []string{}
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		c.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// ProgressData is the sparse per-stage progress map stored on a project.
type ProgressData map[StageKey]*StageProgress

// Clone returns a deep copy of the map.
func (d ProgressData) Clone() ProgressData {
	out := make(ProgressData, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// ChecklistItem is a static checklist item definition.
type ChecklistItem struct {
	Stage      StageKey `json:"stage" yaml:"stage"`
	ItemKey    string   `json:"item_key" yaml:"item_key"`
	Label      string   `json:"label" yaml:"label"`
	SortOrder  int      `json:"sort_order" yaml:"sort_order"`
	LinkedTool string   `json:"linked_tool,omitempty" yaml:"linked_tool,omitempty"`
}
