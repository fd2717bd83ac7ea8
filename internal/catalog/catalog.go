// Package catalog holds the static reference data: checklist definitions,
// the level table, achievement definitions and the lesson catalog.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/ashureev/launchpad/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Catalog is the full set of reference tables.
type Catalog struct {
	Checklist    []domain.ChecklistItem `yaml:"checklist"`
	Levels       []domain.Level         `yaml:"levels"`
	Achievements []domain.Achievement   `yaml:"achievements"`
	Lessons      []domain.Lesson        `yaml:"lessons"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks keys are unique and stages are known.
func (c *Catalog) Validate() error {
	items := make(map[string]bool)
	for _, it := range c.Checklist {
		if !it.Stage.Valid() {
			return fmt.Errorf("checklist item %s: unknown stage %q", it.ItemKey, it.Stage)
		}
		if it.ItemKey == "" {
			return fmt.Errorf("checklist item in stage %s has no key", it.Stage)
		}
		k := string(it.Stage) + "/" + it.ItemKey
		if items[k] {
			return fmt.Errorf("duplicate checklist item %s", k)
		}
		items[k] = true
	}

	levels := make(map[int]bool)
	for _, l := range c.Levels {
		if l.Level < 1 {
			return fmt.Errorf("level %d must be >= 1", l.Level)
		}
		if levels[l.Level] {
			return fmt.Errorf("duplicate level %d", l.Level)
		}
		levels[l.Level] = true
	}

	achievements := make(map[string]bool)
	for _, a := range c.Achievements {
		if a.ID == "" {
			return fmt.Errorf("achievement %q has no id", a.Title)
		}
		if achievements[a.ID] {
			return fmt.Errorf("duplicate achievement %s", a.ID)
		}
		achievements[a.ID] = true
	}

	lessons := make(map[string]bool)
	for _, l := range c.Lessons {
		if !l.Stage.Valid() {
			return fmt.Errorf("lesson %s: unknown stage %q", l.ID, l.Stage)
		}
		if lessons[l.ID] {
			return fmt.Errorf("duplicate lesson %s", l.ID)
		}
		lessons[l.ID] = true
	}
	return nil
}

// ChecklistFor returns the items of stage ordered by sort_order.
func (c *Catalog) ChecklistFor(stage domain.StageKey) []domain.ChecklistItem {
	var out []domain.ChecklistItem
	for _, it := range c.Checklist {
		if it.Stage == stage {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}
