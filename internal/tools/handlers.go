package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/learning"
	"github.com/ashureev/launchpad/internal/progress"
)

// artifactChecklist maps artifact fields to the checklist item they complete.
var artifactChecklist = map[string]checklistRef{
	"problem":           {domain.StageIdea, "define_problem"},
	"target_audience":   {domain.StageIdea, "target_audience"},
	"idea":              {domain.StageIdea, "formulate_idea"},
	"hypotheses":        {domain.StageValidation, "formulate_hypotheses"},
	"value_proposition": {domain.StageBusinessModel, "value_proposition"},
	"customer_segments": {domain.StageBusinessModel, "customer_segments"},
	"revenue_streams":   {domain.StageBusinessModel, "revenue_streams"},
	"mvp_scope":         {domain.StageMVP, "define_mvp_scope"},
	"pitch":             {domain.StagePitch, "pitch_deck"},
}

type checklistRef struct {
	Stage   domain.StageKey
	ItemKey string
}

func (r checklistRef) String() string {
	return string(r.Stage) + "/" + r.ItemKey
}

// Deps are the services the tools act through.
type Deps struct {
	Engine   *progress.Engine
	Learning *learning.Service
}

// NewDefaultRegistry registers the seven launchpad tools.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(&saveIdeaTool{deps})
	r.Register(&evaluateICETool{deps})
	r.Register(&createProjectTool{deps})
	r.Register(&completeItemTool{deps})
	r.Register(&reopenStageTool{deps})
	r.Register(&updateArtifactsTool{deps})
	r.Register(&suggestLessonTool{deps})
	return r
}

// ChecklistResult is the shared shape of results that touched the checklist.
type ChecklistResult struct {
	Success            bool                     `json:"success"`
	ProjectID          string                   `json:"projectId,omitempty"`
	CompletedItems     []string                 `json:"completedItems,omitempty"`
	ChecklistCompleted string                   `json:"checklistCompleted,omitempty"`
	ChecklistError     string                   `json:"checklistError,omitempty"`
	StageCompleted     bool                     `json:"stageCompleted,omitempty"`
	NewStage           domain.StageKey          `json:"newStage,omitempty"`
	XPAwarded          int                      `json:"xpAwarded,omitempty"`
	Unlocked           []domain.UserAchievement `json:"unlockedAchievements,omitempty"`
}

func (c *ChecklistResult) merge(ref checklistRef, res *progress.Result) {
	c.CompletedItems = append(c.CompletedItems, ref.String())
	c.StageCompleted = c.StageCompleted || res.StageCompleted
	if res.Advanced {
		c.NewStage = res.NewStage
	}
	c.XPAwarded += res.XPAwarded
	for _, ua := range res.Unlocked {
		if !hasAchievement(c.Unlocked, ua.ID) {
			c.Unlocked = append(c.Unlocked, ua)
		}
	}
}

func hasAchievement(list []domain.UserAchievement, id string) bool {
	for _, ua := range list {
		if ua.ID == id {
			return true
		}
	}
	return false
}

// autoComplete completes the checklist items mapped from fields. Failures are
// collected into ChecklistError and never fail the caller.
func autoComplete(ctx context.Context, e *progress.Engine, userID, projectID string, fields []string, out *ChecklistResult) {
	var errs []string
	for _, f := range fields {
		ref, ok := artifactChecklist[f]
		if !ok {
			continue
		}
		res, err := e.CompleteChecklistItem(ctx, userID, projectID, ref.Stage, ref.ItemKey)
		if err != nil {
			errs = append(errs, ref.String()+": "+domain.Message(err))
			continue
		}
		out.merge(ref, res)
	}
	if len(errs) > 0 {
		out.ChecklistError = strings.Join(errs, "; ")
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return domain.Invalid("invalid arguments: " + err.Error())
	}
	return nil
}

func requireString(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.Invalid(name + " is required")
	}
	return value, nil
}

func parseStageArg(raw string) (domain.StageKey, error) {
	if strings.TrimSpace(raw) == "" {
		return "", domain.Invalid("stage is required")
	}
	return domain.ParseStage(strings.TrimSpace(raw))
}

func activeProject(ctx context.Context, e *progress.Engine, userID string) (*domain.Project, error) {
	p, err := e.ActiveProject(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Join(domain.ErrNotFound,
			errors.New("no active project, create one with save_idea or create_project_with_stage"))
	}
	return p, err
}

func stageEnum() []string {
	out := make([]string, 0, len(domain.Stages))
	for _, s := range domain.Stages {
		out = append(out, string(s))
	}
	return out
}

func stageProperty(desc string) map[string]any {
	return map[string]any{"type": "string", "enum": stageEnum(), "description": desc}
}

// --- save_idea ---

type saveIdeaTool struct{ Deps }

type saveIdeaArgs struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Problem        string `json:"problem"`
	TargetAudience string `json:"target_audience"`
}

// SaveIdeaResult is the result of save_idea.
type SaveIdeaResult struct {
	ChecklistResult
	Created bool `json:"created"`
}

func (t *saveIdeaTool) Schema() Schema {
	return Schema{
		Name:        "save_idea",
		Description: "Save the user's startup idea. Creates the active project at the idea stage if none exists, otherwise updates it.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":           map[string]string{"type": "string", "description": "Short name of the idea"},
				"description":     map[string]string{"type": "string", "description": "One or two sentences describing the idea"},
				"problem":         map[string]string{"type": "string", "description": "The problem the idea solves"},
				"target_audience": map[string]string{"type": "string", "description": "Who has the problem"},
			},
			"required": []string{"title"},
		}),
	}
}

func (t *saveIdeaTool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args saveIdeaArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	title, err := requireString("title", args.Title)
	if err != nil {
		return nil, err
	}

	out := &SaveIdeaResult{ChecklistResult: ChecklistResult{Success: true}}
	p, err := t.Engine.ActiveProject(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p, err = t.Engine.CreateProject(ctx, userID, title, domain.StageIdea, "")
		if err != nil {
			return nil, err
		}
		out.Created = true
	case err != nil:
		return nil, err
	}
	out.ProjectID = p.ID

	idea := strings.TrimSpace(args.Description)
	if idea == "" {
		idea = title
	}
	fields := map[string]string{
		"idea":            idea,
		"problem":         strings.TrimSpace(args.Problem),
		"target_audience": strings.TrimSpace(args.TargetAudience),
	}
	var saved []string
	_, err = t.Engine.UpdateArtifacts(ctx, userID, p.ID, func(a *domain.Artifacts) error {
		for _, f := range []string{"problem", "target_audience", "idea"} {
			if fields[f] == "" {
				continue
			}
			if err := a.Set(f, fields[f]); err != nil {
				return err
			}
			saved = append(saved, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	autoComplete(ctx, t.Engine, userID, p.ID, saved, &out.ChecklistResult)
	return out, nil
}

// --- evaluate_ice ---

type evaluateICETool struct{ Deps }

type evaluateICEArgs struct {
	Impact     *int   `json:"impact"`
	Confidence *int   `json:"confidence"`
	Ease       *int   `json:"ease"`
	Notes      string `json:"notes"`
}

// EvaluateICEResult is the result of evaluate_ice.
type EvaluateICEResult struct {
	ChecklistResult
	ICE domain.ICEScore `json:"ice"`
}

func (t *evaluateICETool) Schema() Schema {
	score := func(desc string) map[string]any {
		return map[string]any{"type": "integer", "minimum": 1, "maximum": 10, "description": desc}
	}
	return Schema{
		Name:        "evaluate_ice",
		Description: "Score the current idea with ICE (impact, confidence, ease, each 1-10) and store the result.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"impact":     score("Expected impact if it works"),
				"confidence": score("Confidence that it will work"),
				"ease":       score("How easy it is to try"),
				"notes":      map[string]string{"type": "string", "description": "Reasoning behind the scores"},
			},
			"required": []string{"impact", "confidence", "ease"},
		}),
	}
}

func iceValue(name string, v *int) (int, error) {
	if v == nil {
		return 0, domain.Invalid(name + " is required")
	}
	if *v < 1 || *v > 10 {
		return 0, domain.Invalid(fmt.Sprintf("%s must be between 1 and 10, got %d", name, *v))
	}
	return *v, nil
}

// ICEScoreOf returns the mean of the three values rounded to two decimals.
func ICEScoreOf(impact, confidence, ease int) float64 {
	mean := float64(impact+confidence+ease) / 3
	return math.Round(mean*100) / 100
}

func (t *evaluateICETool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args evaluateICEArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	impact, err := iceValue("impact", args.Impact)
	if err != nil {
		return nil, err
	}
	confidence, err := iceValue("confidence", args.Confidence)
	if err != nil {
		return nil, err
	}
	ease, err := iceValue("ease", args.Ease)
	if err != nil {
		return nil, err
	}

	p, err := activeProject(ctx, t.Engine, userID)
	if err != nil {
		return nil, err
	}
	ice := domain.ICEScore{
		Impact:     impact,
		Confidence: confidence,
		Ease:       ease,
		Score:      ICEScoreOf(impact, confidence, ease),
		Notes:      strings.TrimSpace(args.Notes),
	}
	if _, err := t.Engine.UpdateArtifacts(ctx, userID, p.ID, func(a *domain.Artifacts) error {
		stored := ice
		a.ICE = &stored
		return nil
	}); err != nil {
		return nil, err
	}

	out := &EvaluateICEResult{ChecklistResult: ChecklistResult{Success: true, ProjectID: p.ID}, ICE: ice}
	ref := checklistRef{domain.StageValidation, "evaluate_ice"}
	res, err := t.Engine.CompleteChecklistItem(ctx, userID, p.ID, ref.Stage, ref.ItemKey)
	if err != nil {
		out.ChecklistError = domain.Message(err)
	} else {
		out.ChecklistCompleted = ref.String()
		out.merge(ref, res)
	}
	return out, nil
}

// --- create_project_with_stage ---

type createProjectTool struct{ Deps }

type createProjectArgs struct {
	Name        string `json:"name"`
	Stage       string `json:"stage"`
	Description string `json:"description"`
}

// ProjectSummary is the compact project view returned by tools.
type ProjectSummary struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Stage domain.StageKey `json:"stage"`
}

// CreateProjectResult is the result of create_project_with_stage.
type CreateProjectResult struct {
	Success bool           `json:"success"`
	Project ProjectSummary `json:"project"`
}

func (t *createProjectTool) Schema() Schema {
	return Schema{
		Name:        "create_project_with_stage",
		Description: "Create a new active project starting at the given stage. The previous active project is kept but deactivated.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":        map[string]string{"type": "string", "description": "Project name"},
				"stage":       stageProperty("Stage the project starts at"),
				"description": map[string]string{"type": "string", "description": "Short description of the project"},
			},
			"required": []string{"name", "stage"},
		}),
	}
}

func (t *createProjectTool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args createProjectArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	name, err := requireString("name", args.Name)
	if err != nil {
		return nil, err
	}
	stage, err := parseStageArg(args.Stage)
	if err != nil {
		return nil, err
	}
	p, err := t.Engine.CreateProject(ctx, userID, name, stage, args.Description)
	if err != nil {
		return nil, err
	}
	return &CreateProjectResult{
		Success: true,
		Project: ProjectSummary{ID: p.ID, Name: p.Name, Stage: p.Stage},
	}, nil
}

// --- complete_checklist_item ---

type completeItemTool struct{ Deps }

type completeItemArgs struct {
	Stage   string `json:"stage"`
	ItemKey string `json:"item_key"`
}

// CompleteItemResult is the result of complete_checklist_item.
type CompleteItemResult struct {
	Success        bool                     `json:"success"`
	Stage          domain.StageKey          `json:"stage"`
	ItemKey        string                   `json:"itemKey"`
	StageCompleted bool                     `json:"stageCompleted"`
	Advanced       bool                     `json:"advanced"`
	NewStage       domain.StageKey          `json:"newStage,omitempty"`
	XPAwarded      int                      `json:"xpAwarded"`
	Unlocked       []domain.UserAchievement `json:"unlockedAchievements,omitempty"`
}

func (t *completeItemTool) Schema() Schema {
	return Schema{
		Name:        "complete_checklist_item",
		Description: "Mark a checklist item of the active project as done.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"stage":    stageProperty("Stage the item belongs to"),
				"item_key": map[string]string{"type": "string", "description": "Key of the checklist item"},
			},
			"required": []string{"stage", "item_key"},
		}),
	}
}

func (t *completeItemTool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args completeItemArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	stage, err := parseStageArg(args.Stage)
	if err != nil {
		return nil, err
	}
	itemKey, err := requireString("item_key", args.ItemKey)
	if err != nil {
		return nil, err
	}
	p, err := activeProject(ctx, t.Engine, userID)
	if err != nil {
		return nil, err
	}
	res, err := t.Engine.CompleteChecklistItem(ctx, userID, p.ID, stage, itemKey)
	if err != nil {
		return nil, err
	}
	return &CompleteItemResult{
		Success:        true,
		Stage:          stage,
		ItemKey:        itemKey,
		StageCompleted: res.StageCompleted,
		Advanced:       res.Advanced,
		NewStage:       res.NewStage,
		XPAwarded:      res.XPAwarded,
		Unlocked:       res.Unlocked,
	}, nil
}

// --- reopen_stage ---

type reopenStageTool struct{ Deps }

type reopenStageArgs struct {
	Stage string `json:"stage"`
}

// ReopenStageResult is the result of reopen_stage.
type ReopenStageResult struct {
	Success bool               `json:"success"`
	Stage   domain.StageKey    `json:"stage"`
	Status  domain.StageStatus `json:"status"`
}

func (t *reopenStageTool) Schema() Schema {
	return Schema{
		Name:        "reopen_stage",
		Description: "Flag a stage of the active project for rework. Completed items are kept.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"stage": stageProperty("Stage to reopen"),
			},
			"required": []string{"stage"},
		}),
	}
}

func (t *reopenStageTool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args reopenStageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	stage, err := parseStageArg(args.Stage)
	if err != nil {
		return nil, err
	}
	p, err := activeProject(ctx, t.Engine, userID)
	if err != nil {
		return nil, err
	}
	if _, err := t.Engine.ReopenStage(ctx, userID, p.ID, stage); err != nil {
		return nil, err
	}
	return &ReopenStageResult{Success: true, Stage: stage, Status: domain.StatusNeedsRevision}, nil
}

// --- update_project_artifacts ---

type updateArtifactsTool struct{ Deps }

type updateArtifactsArgs struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// UpdateArtifactsResult is the result of update_project_artifacts.
type UpdateArtifactsResult struct {
	ChecklistResult
	Field string `json:"field"`
}

func (t *updateArtifactsTool) Schema() Schema {
	return Schema{
		Name: "update_project_artifacts",
		Description: "Save a fact about the active project, such as problem, target_audience, hypotheses, " +
			"value_proposition, mvp_scope, pitch or a business model canvas block (bmc_<block>). " +
			"Known fields also complete their checklist item.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field": map[string]string{"type": "string", "description": "Artifact field name"},
				"value": map[string]any{
					"description": "Value to store; hypotheses accept a string or a list of strings",
					"anyOf": []map[string]any{
						{"type": "string"},
						{"type": "array", "items": map[string]string{"type": "string"}},
					},
				},
			},
			"required": []string{"field", "value"},
		}),
	}
}

// artifactValues flattens a raw value into the strings to store.
func artifactValues(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, domain.Invalid("value is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return nil, domain.Invalid("value is required")
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, domain.Invalid("value is required")
		}
		return list, nil
	}
	return []string{string(raw)}, nil
}

func (t *updateArtifactsTool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args updateArtifactsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	field, err := requireString("field", args.Field)
	if err != nil {
		return nil, err
	}
	values, err := artifactValues(args.Value)
	if err != nil {
		return nil, err
	}
	if field != "hypotheses" && len(values) > 1 {
		values = []string{strings.Join(values, "\n")}
	}

	p, err := activeProject(ctx, t.Engine, userID)
	if err != nil {
		return nil, err
	}
	if _, err := t.Engine.UpdateArtifacts(ctx, userID, p.ID, func(a *domain.Artifacts) error {
		for _, v := range values {
			if err := a.Set(field, v); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	out := &UpdateArtifactsResult{ChecklistResult: ChecklistResult{Success: true, ProjectID: p.ID}, Field: field}
	autoComplete(ctx, t.Engine, userID, p.ID, []string{field}, &out.ChecklistResult)
	if ref, ok := artifactChecklist[field]; ok && out.ChecklistError == "" {
		out.ChecklistCompleted = ref.String()
	}
	return out, nil
}

// --- suggest_lesson ---

type suggestLessonTool struct{ Deps }

type suggestLessonArgs struct {
	Stage string `json:"stage"`
}

// SuggestLessonResult is the result of suggest_lesson.
type SuggestLessonResult struct {
	Success bool `json:"success"`
	*learning.Suggestion
}

func (t *suggestLessonTool) Schema() Schema {
	return Schema{
		Name:        "suggest_lesson",
		Description: "Suggest the next lesson the user has not completed. Defaults to the active project's stage.",
		InputSchema: MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"stage": stageProperty("Stage to pick a lesson from"),
			},
		}),
	}
}

func (t *suggestLessonTool) Execute(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args suggestLessonArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	var stage domain.StageKey
	if strings.TrimSpace(args.Stage) != "" {
		s, err := domain.ParseStage(strings.TrimSpace(args.Stage))
		if err != nil {
			return nil, err
		}
		stage = s
	}
	s, err := t.Learning.Suggest(ctx, userID, stage)
	if err != nil {
		return nil, err
	}
	return &SuggestLessonResult{Success: true, Suggestion: s}, nil
}
