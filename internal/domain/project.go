package domain

import (
	"slices"
	"strings"
	"time"
)

// Project is a user's startup venture moving through the stages.
type Project struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"owner_id"`
	Name         string       `json:"name"`
	Stage        StageKey     `json:"stage"`
	IsActive     bool         `json:"is_active"`
	ProgressData ProgressData `json:"progress_data"`
	Artifacts    Artifacts    `json:"artifacts"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Progress returns the progress entry for stage, or nil if the stage was never started.
func (p *Project) Progress(stage StageKey) *StageProgress {
	if p.ProgressData == nil {
		return nil
	}
	return p.ProgressData[stage]
}

// StagesReached returns the stages up to and including the current one.
// Progress entries beyond the pointer do not count.
func (p *Project) StagesReached() []StageKey {
	idx := p.Stage.Index()
	if idx < 0 {
		return nil
	}
	return slices.Clone(Stages[:idx+1])
}

// ICEScore is the stored result of an ICE prioritisation.
type ICEScore struct {
	Impact     int     `json:"impact"`
	Confidence int     `json:"confidence"`
	Ease       int     `json:"ease"`
	Score      float64 `json:"score"`
	Notes      string  `json:"notes,omitempty"`
}

// BMCBlocks are the nine Business Model Canvas blocks.
var BMCBlocks = []string{
	"key_partners",
	"key_activities",
	"key_resources",
	"value_propositions",
	"customer_relationships",
	"channels",
	"customer_segments",
	"cost_structure",
	"revenue_streams",
}

const bmcPrefix = "bmc_"

// Artifacts holds facts extracted from conversations about a project.
// Hypotheses is append-only; every other field is last-write-wins.
type Artifacts struct {
	Problem          string            `json:"problem,omitempty"`
	TargetAudience   string            `json:"target_audience,omitempty"`
	Idea             string            `json:"idea,omitempty"`
	Solution         string            `json:"solution,omitempty"`
	ValueProposition string            `json:"value_proposition,omitempty"`
	CustomerSegments string            `json:"customer_segments,omitempty"`
	RevenueStreams   string            `json:"revenue_streams,omitempty"`
	UniqueAdvantage  string            `json:"unique_advantage,omitempty"`
	MVPScope         string            `json:"mvp_scope,omitempty"`
	Pitch            string            `json:"pitch,omitempty"`
	Hypotheses       []string          `json:"hypotheses,omitempty"`
	ICE              *ICEScore         `json:"ice,omitempty"`
	BMC              map[string]string `json:"bmc,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

func (a *Artifacts) scalar(field string) *string {
	switch field {
	case "problem":
		return &a.Problem
	case "target_audience":
		return &a.TargetAudience
	case "idea":
		return &a.Idea
	case "solution":
		return &a.Solution
	case "value_proposition":
		return &a.ValueProposition
	case "customer_segments":
		return &a.CustomerSegments
	case "revenue_streams":
		return &a.RevenueStreams
	case "unique_advantage":
		return &a.UniqueAdvantage
	case "mvp_scope":
		return &a.MVPScope
	case "pitch":
		return &a.Pitch
	}
	return nil
}

// Set stores value under field. Unknown fields land in Extra.
func (a *Artifacts) Set(field, value string) error {
	field = strings.TrimSpace(field)
	if field == "" {
		return Invalid("artifact field is required")
	}
	if field == "hypotheses" {
		a.Hypotheses = append(a.Hypotheses, value)
		return nil
	}
	if p := a.scalar(field); p != nil {
		*p = value
		return nil
	}
	if block, ok := strings.CutPrefix(field, bmcPrefix); ok {
		if !isBMCBlock(block) {
			return Invalid("unknown business model canvas block " + block)
		}
		if a.BMC == nil {
			a.BMC = make(map[string]string)
		}
		a.BMC[block] = value
		return nil
	}
	if a.Extra == nil {
		a.Extra = make(map[string]string)
	}
	a.Extra[field] = value
	return nil
}

// Get returns the scalar value of field. Hypotheses are joined by newlines.
func (a *Artifacts) Get(field string) string {
	if field == "hypotheses" {
		return strings.Join(a.Hypotheses, "\n")
	}
	if p := a.scalar(field); p != nil {
		return *p
	}
	if block, ok := strings.CutPrefix(field, bmcPrefix); ok {
		return a.BMC[block]
	}
	return a.Extra[field]
}

// BMCFilled counts canvas blocks with non-blank content.
func (a *Artifacts) BMCFilled() int {
	n := 0
	for _, block := range BMCBlocks {
		if strings.TrimSpace(a.BMC[block]) != "" {
			n++
		}
	}
	return n
}

func isBMCBlock(block string) bool {
	return slices.Contains(BMCBlocks, block)
}
