// Package progress implements the per-project stage and checklist state machine.
package progress

import (
	"sort"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
)

// Change describes what a transition did to a project held in memory.
type Change struct {
	ItemAdded      bool
	ItemRemoved    bool
	StageCompleted bool
	Reverted       bool
	Reopened       bool
	Advanced       bool
	From           domain.StageKey
	To             domain.StageKey
}

// Mutated reports whether the project must be written back.
func (c Change) Mutated() bool {
	return c.ItemAdded || c.ItemRemoved || c.StageCompleted || c.Reverted || c.Reopened || c.Advanced
}

// OrderedItems returns the item keys of defs in sort_order.
func OrderedItems(defs []domain.ChecklistItem) []string {
	sorted := make([]domain.ChecklistItem, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortOrder < sorted[j].SortOrder })

	keys := make([]string, 0, len(sorted))
	for _, d := range sorted {
		keys = append(keys, d.ItemKey)
	}
	return keys
}

// AllDone reports whether p holds every defined item. A stage without
// definitions is never done.
func AllDone(p *domain.StageProgress, defs []domain.ChecklistItem) bool {
	if p == nil || len(defs) == 0 {
		return false
	}
	for _, d := range defs {
		if !p.Has(d.ItemKey) {
			return false
		}
	}
	return true
}

// IsDefined reports whether itemKey is one of defs.
func IsDefined(itemKey string, defs []domain.ChecklistItem) bool {
	for _, d := range defs {
		if d.ItemKey == itemKey {
			return true
		}
	}
	return false
}

func ensureProgress(p *domain.Project, stage domain.StageKey, now time.Time) *domain.StageProgress {
	if p.ProgressData == nil {
		p.ProgressData = domain.ProgressData{}
	}
	sp := p.ProgressData[stage]
	if sp == nil {
		sp = domain.NewStageProgress(now)
		p.ProgressData[stage] = sp
	}
	return sp
}

// AddItem records itemKey for stage and completes the stage when every
// defined item is present. The project advances one stage only while its
// current stage is the one being completed.
func AddItem(p *domain.Project, stage domain.StageKey, itemKey string, defs []domain.ChecklistItem, now time.Time) Change {
	sp := ensureProgress(p, stage, now)
	c := Change{From: p.Stage, To: p.Stage}
	c.ItemAdded = sp.Add(itemKey)

	if sp.Status == domain.StatusCompleted || !AllDone(sp, defs) {
		return c
	}

	completed := now
	sp.Status = domain.StatusCompleted
	sp.CompletedAt = &completed
	c.StageCompleted = true

	if p.Stage != stage {
		return c
	}
	next, ok := stage.Next()
	if !ok {
		return c
	}
	p.Stage = next
	ensureProgress(p, next, now)
	c.Advanced = true
	c.To = next
	return c
}

// RemoveItem drops itemKey from stage. A completed stage falls back to
// in_progress; the project's stage pointer is left where it is.
func RemoveItem(p *domain.Project, stage domain.StageKey, itemKey string) Change {
	c := Change{From: p.Stage, To: p.Stage}
	sp := p.Progress(stage)
	if sp == nil {
		return c
	}
	c.ItemRemoved = sp.Remove(itemKey)
	if c.ItemRemoved && sp.Status == domain.StatusCompleted {
		sp.Status = domain.StatusInProgress
		sp.CompletedAt = nil
		c.Reverted = true
	}
	return c
}

// Reopen flags stage for rework, keeping its completed items. A stage that
// was never started cannot be reopened.
func Reopen(p *domain.Project, stage domain.StageKey) (Change, error) {
	c := Change{From: p.Stage, To: p.Stage}
	sp := p.Progress(stage)
	if sp == nil {
		return c, domain.NotFound("stage progress", string(stage))
	}
	if sp.Status != domain.StatusNeedsRevision {
		sp.Status = domain.StatusNeedsRevision
		c.Reopened = true
	}
	return c, nil
}
