package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/launchpad/internal/catalog"
	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/learning"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/progress"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

// fakeTool is a simple mock Tool for testing.
type fakeTool struct {
	name   string
	result any
	err    error
	panics bool
}

func (f *fakeTool) Schema() Schema {
	return Schema{
		Name:        f.name,
		Description: "fake",
		InputSchema: MustSchema(map[string]any{"type": "object"}),
	}
}

func (f *fakeTool) Execute(_ context.Context, _ string, _ json.RawMessage) (any, error) {
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "b"})
	r.Register(&fakeTool{name: "a"})

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Schema().Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "a", schemas[0].Name)
	assert.Equal(t, "b", schemas[1].Name)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "dup"})
	assert.Panics(t, func() { r.Register(&fakeTool{name: "dup"}) })
}

func TestMustSchema(t *testing.T) {
	assert.JSONEq(t, `{"type":"object"}`, string(MustSchema(map[string]string{"type": "object"})))
	assert.Panics(t, func() { MustSchema(make(chan int)) })
}

func TestDispatcher_Errors(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "ok", result: map[string]any{"success": true}})
	r.Register(&fakeTool{name: "invalid", err: domain.Invalid("title is required")})
	r.Register(&fakeTool{name: "broken", err: errors.New("disk full")})
	r.Register(&fakeTool{name: "panicky", panics: true})
	d := NewDispatcher(r, metrics.New(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		tool    string
		wantErr string
	}{
		{"unknown tool", "u1", "nope", "unknown tool: nope"},
		{"no user", "", "ok", "unauthorized"},
		{"validation", "u1", "invalid", "title is required"},
		{"handler error", "u1", "broken", "disk full"},
		{"panic", "u1", "panicky", "internal error while running panicky"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decode(t, d.Execute(ctx, tt.userID, tt.tool, nil))
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.wantErr, out["error"])
		})
	}

	out := decode(t, d.Execute(ctx, "u1", "ok", nil))
	assert.Equal(t, true, out["success"])
}

type fixture struct {
	repo *store.SQLStore
	d    *Dispatcher
}

func newDispatcher(t *testing.T, repo store.Repository) *Dispatcher {
	t.Helper()
	clock := func() time.Time { return now }
	svc := gamification.New(repo, gamification.Options{Clock: clock})
	deps := Deps{
		Engine:   progress.NewEngine(repo, svc.Orchestrator, progress.Options{Clock: clock}),
		Learning: learning.New(repo, svc.Orchestrator, learning.Options{Clock: clock}),
	}
	return NewDispatcher(NewDefaultRegistry(deps), nil, nil)
}

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	repo, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	c, err := catalog.Default()
	require.NoError(t, err)
	require.NoError(t, repo.SeedCatalog(ctx, c))
	require.NoError(t, repo.EnsureProfile(ctx, &domain.Profile{ID: "u1"}))
	return repo
}

func setup(t *testing.T) fixture {
	repo := newTestStore(t)
	return fixture{repo: repo, d: newDispatcher(t, repo)}
}

func (f fixture) call(t *testing.T, tool, args string) map[string]any {
	t.Helper()
	return decode(t, f.d.Execute(context.Background(), "u1", tool, json.RawMessage(args)))
}

func (f fixture) xp(t *testing.T) int {
	t.Helper()
	p, err := f.repo.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	return p.XP
}

func (f fixture) active(t *testing.T) *domain.Project {
	t.Helper()
	p, err := f.repo.GetActiveProject(context.Background(), "u1")
	require.NoError(t, err)
	return p
}

func unlockedIDs(out map[string]any) []string {
	var ids []string
	list, _ := out["unlockedAchievements"].([]any)
	for _, v := range list {
		if ua, ok := v.(map[string]any); ok {
			id, _ := ua["id"].(string)
			ids = append(ids, id)
		}
	}
	return ids
}

func TestDefaultRegistry_Names(t *testing.T) {
	d := newDispatcher(t, newTestStore(t))
	var names []string
	for _, s := range d.Schemas() {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.Description)
		assert.True(t, json.Valid(s.InputSchema), s.Name)
	}
	assert.Equal(t, []string{
		"complete_checklist_item",
		"create_project_with_stage",
		"evaluate_ice",
		"reopen_stage",
		"save_idea",
		"suggest_lesson",
		"update_project_artifacts",
	}, names)
}

func TestSaveIdea_CreatesAndCompletesIdeaStage(t *testing.T) {
	f := setup(t)
	out := f.call(t, "save_idea", `{
		"title": "Launchpad",
		"description": "Mentoring for first-time founders",
		"problem": "Founders do not know where to start",
		"target_audience": "Students"
	}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, true, out["created"])
	assert.ElementsMatch(t, []any{"idea/define_problem", "idea/target_audience", "idea/formulate_idea"}, out["completedItems"])
	assert.Equal(t, true, out["stageCompleted"])
	assert.Equal(t, "validation", out["newStage"])
	assert.EqualValues(t, 3*progress.ItemXP+progress.StageCompleteXP, out["xpAwarded"])

	p := f.active(t)
	assert.Equal(t, p.ID, out["projectId"])
	assert.Equal(t, "Launchpad", p.Name)
	assert.Equal(t, "Mentoring for first-time founders", p.Artifacts.Idea)
	assert.Equal(t, "Founders do not know where to start", p.Artifacts.Problem)
	assert.Equal(t, domain.StageValidation, p.Stage)
}

func TestSaveIdea_UpdatesActiveProject(t *testing.T) {
	f := setup(t)
	out := f.call(t, "save_idea", `{"title": "Launchpad"}`)
	require.Equal(t, true, out["success"], out)
	first := f.active(t)
	assert.Equal(t, "Launchpad", first.Artifacts.Idea, "title stands in for a missing description")

	out = f.call(t, "save_idea", `{"title": "Launchpad", "problem": "Too many tabs"}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, false, out["created"])

	second := f.active(t)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Too many tabs", second.Artifacts.Problem)

	out = f.call(t, "save_idea", `{"description": "no title"}`)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "title is required", out["error"])
}

func TestEvaluateICE(t *testing.T) {
	f := setup(t)
	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "validation"}`)

	out := f.call(t, "evaluate_ice", `{"impact": 8, "confidence": 6, "ease": 7, "notes": "strong pull"}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, "validation/evaluate_ice", out["checklistCompleted"])
	ice := out["ice"].(map[string]any)
	assert.InDelta(t, 7.0, ice["score"], 0.001)

	p := f.active(t)
	require.NotNil(t, p.Artifacts.ICE)
	assert.Equal(t, "strong pull", p.Artifacts.ICE.Notes)
	assert.True(t, p.Progress(domain.StageValidation).Has("evaluate_ice"))

	out = f.call(t, "evaluate_ice", `{"impact": 11, "confidence": 6, "ease": 7}`)
	assert.Equal(t, "impact must be between 1 and 10, got 11", out["error"])
	out = f.call(t, "evaluate_ice", `{"impact": 5, "ease": 7}`)
	assert.Equal(t, "confidence is required", out["error"])
}

func TestICEScoreOf(t *testing.T) {
	assert.Equal(t, 7.0, ICEScoreOf(8, 6, 7))
	assert.Equal(t, 6.67, ICEScoreOf(10, 5, 5))
	assert.Equal(t, 1.0, ICEScoreOf(1, 1, 1))
}

func TestCreateProjectWithStage(t *testing.T) {
	f := setup(t)
	out := f.call(t, "create_project_with_stage", `{"name": "First", "stage": "idea"}`)
	require.Equal(t, true, out["success"], out)
	firstID := out["project"].(map[string]any)["id"]

	out = f.call(t, "create_project_with_stage", `{"name": "Second", "stage": "mvp", "description": "B2B tool"}`)
	require.Equal(t, true, out["success"], out)
	project := out["project"].(map[string]any)
	assert.Equal(t, "mvp", project["stage"])

	p := f.active(t)
	assert.Equal(t, project["id"], p.ID)
	assert.Equal(t, "B2B tool", p.Artifacts.Idea)

	old, err := f.repo.GetProject(context.Background(), firstID.(string))
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	out = f.call(t, "create_project_with_stage", `{"name": "Third", "stage": "launch"}`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], `unknown stage "launch"`)
	out = f.call(t, "create_project_with_stage", `{"stage": "idea"}`)
	assert.Equal(t, "name is required", out["error"])
}

func TestCompleteChecklistItemAndReopen(t *testing.T) {
	f := setup(t)
	out := f.call(t, "complete_checklist_item", `{"stage": "idea", "item_key": "define_problem"}`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "no active project")

	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "idea"}`)
	out = f.call(t, "complete_checklist_item", `{"stage": "idea", "item_key": "define_problem"}`)
	require.Equal(t, true, out["success"], out)
	assert.EqualValues(t, progress.ItemXP, out["xpAwarded"])
	assert.Equal(t, false, out["stageCompleted"])

	out = f.call(t, "complete_checklist_item", `{"stage": "idea", "item_key": "fly"}`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], `unknown checklist item "fly"`)

	out = f.call(t, "reopen_stage", `{"stage": "idea"}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, "needs_revision", out["status"])
	assert.Equal(t, domain.StatusNeedsRevision, f.active(t).Progress(domain.StageIdea).Status)

	out = f.call(t, "reopen_stage", `{"stage": "pitch"}`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "stage progress pitch not found")

	out = f.call(t, "reopen_stage", `{}`)
	assert.Equal(t, "stage is required", out["error"])
}

func TestUpdateProjectArtifacts_LaterStageItemDoesNotReachStage(t *testing.T) {
	f := setup(t)
	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "idea"}`)

	out := f.call(t, "update_project_artifacts", `{"field": "pitch", "value": "Ten slides"}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, "pitch/pitch_deck", out["checklistCompleted"])
	assert.NotContains(t, unlockedIDs(out), "pitch_ready")

	out = f.call(t, "update_project_artifacts", `{"field": "mvp_scope", "value": "Checklist only"}`)
	require.Equal(t, true, out["success"], out)
	assert.NotContains(t, unlockedIDs(out), "mvp_builder")

	p := f.active(t)
	assert.Equal(t, domain.StageIdea, p.Stage)
	assert.NotNil(t, p.Progress(domain.StagePitch))

	list, err := f.repo.ListUserAchievements(context.Background(), "u1")
	require.NoError(t, err)
	for _, ua := range list {
		if ua.Criteria.Type == domain.CriteriaStageReached {
			assert.False(t, ua.Earned, ua.ID)
		}
	}
}

func TestUpdateProjectArtifacts_AlreadyCompletedItem(t *testing.T) {
	f := setup(t)
	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "idea"}`)

	out := f.call(t, "update_project_artifacts", `{"field": "problem", "value": "Slow onboarding"}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, "idea/define_problem", out["checklistCompleted"])
	assert.EqualValues(t, progress.ItemXP, out["xpAwarded"])
	xp := f.xp(t)

	out = f.call(t, "update_project_artifacts", `{"field": "problem", "value": "Onboarding takes a week"}`)
	require.Equal(t, true, out["success"], out)
	assert.Nil(t, out["checklistError"])
	assert.Nil(t, out["xpAwarded"])
	assert.Equal(t, xp, f.xp(t), "no XP for an item that was already complete")

	p := f.active(t)
	assert.Equal(t, "Onboarding takes a week", p.Artifacts.Problem)
	assert.Equal(t, []string{"define_problem"}, p.Progress(domain.StageIdea).CompletedItems)
}

func TestUpdateProjectArtifacts_Values(t *testing.T) {
	f := setup(t)
	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "validation"}`)

	out := f.call(t, "update_project_artifacts", `{"field": "hypotheses", "value": ["Founders pay", "Schools refer"]}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, "validation/formulate_hypotheses", out["checklistCompleted"])
	f.call(t, "update_project_artifacts", `{"field": "hypotheses", "value": "Mentors volunteer"}`)

	out = f.call(t, "update_project_artifacts", `{"field": "bmc_channels", "value": "Campus events"}`)
	require.Equal(t, true, out["success"], out)
	assert.Nil(t, out["checklistCompleted"])

	out = f.call(t, "update_project_artifacts", `{"field": "budget", "value": {"monthly": 500}}`)
	require.Equal(t, true, out["success"], out)

	p := f.active(t)
	assert.Equal(t, []string{"Founders pay", "Schools refer", "Mentors volunteer"}, p.Artifacts.Hypotheses)
	assert.Equal(t, "Campus events", p.Artifacts.BMC["channels"])
	assert.JSONEq(t, `{"monthly": 500}`, p.Artifacts.Extra["budget"])

	out = f.call(t, "update_project_artifacts", `{"field": "problem"}`)
	assert.Equal(t, "value is required", out["error"])
	out = f.call(t, "update_project_artifacts", `{"field": "bmc_vibes", "value": "x"}`)
	assert.Equal(t, "unknown business model canvas block vibes", out["error"])
}

// progressFailingRepo fails every checklist write while artifact writes succeed.
type progressFailingRepo struct {
	*store.SQLStore
}

func (progressFailingRepo) UpdateProgress(context.Context, string, domain.StageKey, domain.ProgressData, int64) (int64, error) {
	return 0, errors.New("progress table locked")
}

func TestUpdateProjectArtifacts_ChecklistFailureIsPartialSuccess(t *testing.T) {
	repo := newTestStore(t)
	f := fixture{repo: repo, d: newDispatcher(t, progressFailingRepo{repo})}
	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "idea"}`)

	out := f.call(t, "update_project_artifacts", `{"field": "target_audience", "value": "Students"}`)
	require.Equal(t, true, out["success"], out)
	assert.Contains(t, out["checklistError"], "idea/target_audience")
	assert.Contains(t, out["checklistError"], "progress table locked")
	assert.Nil(t, out["checklistCompleted"])

	p := f.active(t)
	assert.Equal(t, "Students", p.Artifacts.TargetAudience)
	assert.False(t, p.Progress(domain.StageIdea).Has("target_audience"))
}

func TestSuggestLesson(t *testing.T) {
	f := setup(t)
	out := f.call(t, "suggest_lesson", `{}`)
	require.Equal(t, true, out["success"], out)
	assert.Equal(t, "idea", out["stage"])
	assert.Equal(t, "idea-problem-first", out["lesson"].(map[string]any)["id"])

	f.call(t, "create_project_with_stage", `{"name": "Launchpad", "stage": "mvp"}`)
	out = f.call(t, "suggest_lesson", `{}`)
	assert.Equal(t, "mvp", out["stage"])

	out = f.call(t, "suggest_lesson", `{"stage": "pitch"}`)
	assert.Equal(t, "pitch", out["stage"])

	out = f.call(t, "suggest_lesson", `{"stage": "later"}`)
	assert.Equal(t, false, out["success"])
}
