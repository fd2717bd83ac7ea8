package progress

import (
	"testing"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func ideaDefs() []domain.ChecklistItem {
	return []domain.ChecklistItem{
		{Stage: domain.StageIdea, ItemKey: "formulate_idea", SortOrder: 3},
		{Stage: domain.StageIdea, ItemKey: "define_problem", SortOrder: 1},
		{Stage: domain.StageIdea, ItemKey: "target_audience", SortOrder: 2},
	}
}

func freshProject(stage domain.StageKey) *domain.Project {
	return &domain.Project{
		ID:           "p1",
		OwnerID:      "u1",
		Stage:        stage,
		IsActive:     true,
		ProgressData: domain.ProgressData{stage: domain.NewStageProgress(now)},
	}
}

func TestOrderedItems(t *testing.T) {
	assert.Equal(t, []string{"define_problem", "target_audience", "formulate_idea"}, OrderedItems(ideaDefs()))
	assert.Empty(t, OrderedItems(nil))
}

func TestAllDone(t *testing.T) {
	sp := domain.NewStageProgress(now)
	assert.False(t, AllDone(sp, ideaDefs()))
	assert.False(t, AllDone(nil, ideaDefs()))

	for _, k := range []string{"define_problem", "target_audience", "formulate_idea", "extra"} {
		sp.Add(k)
	}
	assert.True(t, AllDone(sp, ideaDefs()))
	assert.False(t, AllDone(sp, nil), "a stage without definitions never completes")
}

func TestAddItem_CompletesAndAdvances(t *testing.T) {
	p := freshProject(domain.StageIdea)

	c := AddItem(p, domain.StageIdea, "define_problem", ideaDefs(), now)
	assert.True(t, c.ItemAdded)
	assert.False(t, c.StageCompleted)

	AddItem(p, domain.StageIdea, "target_audience", ideaDefs(), now)
	c = AddItem(p, domain.StageIdea, "formulate_idea", ideaDefs(), now)
	assert.True(t, c.StageCompleted)
	assert.True(t, c.Advanced)
	assert.Equal(t, domain.StageIdea, c.From)
	assert.Equal(t, domain.StageValidation, c.To)

	idea := p.Progress(domain.StageIdea)
	assert.Equal(t, domain.StatusCompleted, idea.Status)
	require.NotNil(t, idea.CompletedAt)

	assert.Equal(t, domain.StageValidation, p.Stage)
	next := p.Progress(domain.StageValidation)
	require.NotNil(t, next)
	assert.Equal(t, domain.StatusInProgress, next.Status)
	assert.Empty(t, next.CompletedItems)

	// A repeat add changes nothing.
	c = AddItem(p, domain.StageIdea, "formulate_idea", ideaDefs(), now)
	assert.False(t, c.Mutated())
}

func TestAddItem_NoAdvanceWhenPointerElsewhere(t *testing.T) {
	p := freshProject(domain.StageMVP)
	for _, k := range []string{"define_problem", "target_audience", "formulate_idea"} {
		AddItem(p, domain.StageIdea, k, ideaDefs(), now)
	}
	assert.Equal(t, domain.StatusCompleted, p.Progress(domain.StageIdea).Status)
	assert.Equal(t, domain.StageMVP, p.Stage)
}

func TestAddItem_PitchIsTerminal(t *testing.T) {
	p := freshProject(domain.StagePitch)
	defs := []domain.ChecklistItem{{Stage: domain.StagePitch, ItemKey: "final_pitch"}}

	c := AddItem(p, domain.StagePitch, "final_pitch", defs, now)
	assert.True(t, c.StageCompleted)
	assert.False(t, c.Advanced)
	assert.Equal(t, domain.StagePitch, p.Stage)
}

func TestAddItem_KeepsExistingNextProgress(t *testing.T) {
	p := freshProject(domain.StageIdea)
	earlier := domain.NewStageProgress(now.Add(-time.Hour))
	earlier.Add("formulate_hypotheses")
	p.ProgressData[domain.StageValidation] = earlier

	for _, k := range []string{"define_problem", "target_audience", "formulate_idea"} {
		AddItem(p, domain.StageIdea, k, ideaDefs(), now)
	}
	assert.Equal(t, []string{"formulate_hypotheses"}, p.Progress(domain.StageValidation).CompletedItems)
}

func TestRemoveItem_RevertsWithoutRollback(t *testing.T) {
	p := freshProject(domain.StageIdea)
	for _, k := range []string{"define_problem", "target_audience", "formulate_idea"} {
		AddItem(p, domain.StageIdea, k, ideaDefs(), now)
	}
	require.Equal(t, domain.StageValidation, p.Stage)

	c := RemoveItem(p, domain.StageIdea, "target_audience")
	assert.True(t, c.ItemRemoved)
	assert.True(t, c.Reverted)

	idea := p.Progress(domain.StageIdea)
	assert.Equal(t, domain.StatusInProgress, idea.Status)
	assert.Nil(t, idea.CompletedAt)
	assert.Equal(t, []string{"define_problem", "formulate_idea"}, idea.CompletedItems)
	assert.Equal(t, domain.StageValidation, p.Stage)

	c = RemoveItem(p, domain.StageMVP, "build_mvp")
	assert.False(t, c.Mutated())
}

func TestReopen(t *testing.T) {
	p := freshProject(domain.StageIdea)
	for _, k := range []string{"define_problem", "target_audience", "formulate_idea"} {
		AddItem(p, domain.StageIdea, k, ideaDefs(), now)
	}

	c, err := Reopen(p, domain.StageIdea)
	require.NoError(t, err)
	assert.True(t, c.Reopened)
	idea := p.Progress(domain.StageIdea)
	assert.Equal(t, domain.StatusNeedsRevision, idea.Status)
	assert.Len(t, idea.CompletedItems, 3)
	assert.Equal(t, domain.StageValidation, p.Stage)

	c, err = Reopen(p, domain.StageIdea)
	require.NoError(t, err)
	assert.False(t, c.Mutated())

	_, err = Reopen(p, domain.StageMVP)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, p.Progress(domain.StageMVP), "no entry for a stage never started")

	// Unchecking does not clear needs_revision.
	RemoveItem(p, domain.StageIdea, "define_problem")
	assert.Equal(t, domain.StatusNeedsRevision, idea.Status)

	// Completing again clears it.
	c = AddItem(p, domain.StageIdea, "define_problem", ideaDefs(), now)
	assert.True(t, c.StageCompleted)
	assert.False(t, c.Advanced)
	assert.Equal(t, domain.StatusCompleted, idea.Status)
}
