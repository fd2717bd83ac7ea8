package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/google/uuid"
)

const (
	// ItemXP is granted once per project, stage and item.
	ItemXP = 15
	// StageCompleteXP is granted once per project and stage.
	StageCompleteXP = 50
)

// Gamifier runs the XP and achievement side effects of an action.
type Gamifier interface {
	Action(ctx context.Context, req gamification.ActionRequest) (*gamification.ActionResult, error)
	CheckAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error)
}

// Result is the outcome of one engine operation.
type Result struct {
	Project           *domain.Project          `json:"project"`
	Stage             domain.StageKey          `json:"stage"`
	ItemKey           string                   `json:"itemKey,omitempty"`
	Checked           bool                     `json:"checked"`
	StageCompleted    bool                     `json:"stageCompleted"`
	Advanced          bool                     `json:"advanced"`
	NewStage          domain.StageKey          `json:"newStage,omitempty"`
	XPAwarded         int                      `json:"xpAwarded"`
	LeveledUp         bool                     `json:"leveledUp,omitempty"`
	NewLevel          int                      `json:"newLevel,omitempty"`
	Unlocked          []domain.UserAchievement `json:"unlockedAchievements,omitempty"`
	GamificationError string                   `json:"gamificationError,omitempty"`
}

// Options configures an Engine.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Engine applies checklist and stage transitions to stored projects. Every
// entry point funnels through the same transition functions; gamification
// runs after the project write commits and never undoes it.
type Engine struct {
	repo     store.Repository
	gamifier Gamifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates an Engine. gamifier may be nil to disable side effects.
func NewEngine(repo store.Repository, gamifier Gamifier, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		repo:     repo,
		gamifier: gamifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
}

// ToggleChecklistItem flips itemKey in stage. Unchecking never moves the
// project's stage pointer back, even when it reverts a completed stage.
func (e *Engine) ToggleChecklistItem(ctx context.Context, userID, projectID string, stage domain.StageKey, itemKey string) (*Result, error) {
	p, defs, err := e.loadForItem(ctx, userID, projectID, stage, itemKey)
	if err != nil {
		return nil, err
	}

	if sp := p.Progress(stage); sp != nil && sp.Has(itemKey) {
		change := RemoveItem(p, stage, itemKey)
		if err := e.save(ctx, p, change); err != nil {
			return nil, err
		}
		if change.Reverted {
			e.metrics.RecordStage(string(stage), "reverted")
		}
		return &Result{Project: p, Stage: stage, ItemKey: itemKey, Checked: false}, nil
	}
	return e.add(ctx, userID, p, stage, itemKey, defs)
}

// CompleteChecklistItem marks itemKey done in stage. Repeating it is a
// membership no-op that still completes the stage if everything is done.
func (e *Engine) CompleteChecklistItem(ctx context.Context, userID, projectID string, stage domain.StageKey, itemKey string) (*Result, error) {
	p, defs, err := e.loadForItem(ctx, userID, projectID, stage, itemKey)
	if err != nil {
		return nil, err
	}
	return e.add(ctx, userID, p, stage, itemKey, defs)
}

// ReopenStage flags stage as needs_revision without touching its items or
// the project's stage pointer.
func (e *Engine) ReopenStage(ctx context.Context, userID, projectID string, stage domain.StageKey) (*Result, error) {
	p, err := e.load(ctx, userID, projectID, stage)
	if err != nil {
		return nil, err
	}
	change, err := Reopen(p, stage)
	if err != nil {
		return nil, err
	}
	if err := e.save(ctx, p, change); err != nil {
		return nil, err
	}
	if change.Reopened {
		e.metrics.RecordStage(string(stage), "reopened")
		e.logger.Info("Stage reopened", "user_id", userID, "project_id", p.ID, "stage", stage)
	}
	return &Result{Project: p, Stage: stage}, nil
}

// Checklist returns the stage's definitions in sort order.
func (e *Engine) Checklist(ctx context.Context, stage domain.StageKey) ([]domain.ChecklistItem, error) {
	if !stage.Valid() {
		return nil, domain.Invalid(fmt.Sprintf("unknown stage %q", stage))
	}
	return e.repo.ListChecklistItems(ctx, stage)
}

// ActiveProject returns the user's active project.
func (e *Engine) ActiveProject(ctx context.Context, userID string) (*domain.Project, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return e.repo.GetActiveProject(ctx, userID)
}

// CreateProject starts a new active project at stage, deactivating the
// previous one, and re-evaluates achievements.
func (e *Engine) CreateProject(ctx context.Context, userID, name string, stage domain.StageKey, description string) (*domain.Project, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("project name is required")
	}
	if !stage.Valid() {
		return nil, domain.Invalid(fmt.Sprintf("unknown stage %q", stage))
	}

	now := e.now()
	p := &domain.Project{
		ID:           uuid.NewString(),
		OwnerID:      userID,
		Name:         name,
		Stage:        stage,
		IsActive:     true,
		ProgressData: domain.ProgressData{stage: domain.NewStageProgress(now)},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if description = strings.TrimSpace(description); description != "" {
		p.Artifacts.Idea = description
	}
	if err := e.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	e.logger.Info("Project created", "user_id", userID, "project_id", p.ID, "stage", stage)

	if e.gamifier != nil {
		if _, err := e.gamifier.CheckAchievements(ctx, userID); err != nil {
			e.metrics.RecordGamificationFailure("achievements")
			e.logger.Error("Achievement check after project creation failed",
				"user_id", userID, "project_id", p.ID, "error", err)
		}
	}
	return p, nil
}

// UpdateArtifacts applies fn to the project's artifacts and stores them.
func (e *Engine) UpdateArtifacts(ctx context.Context, userID, projectID string, fn func(*domain.Artifacts) error) (*domain.Project, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	p, err := e.owned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := fn(&p.Artifacts); err != nil {
		return nil, err
	}
	v, err := e.repo.UpdateArtifacts(ctx, p.ID, p.Artifacts, p.Version)
	if err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}
	p.Version = v
	p.UpdatedAt = e.now()
	return p, nil
}

func (e *Engine) add(ctx context.Context, userID string, p *domain.Project, stage domain.StageKey, itemKey string, defs []domain.ChecklistItem) (*Result, error) {
	change := AddItem(p, stage, itemKey, defs, e.now())
	if err := e.save(ctx, p, change); err != nil {
		return nil, err
	}

	res := &Result{
		Project:        p,
		Stage:          stage,
		ItemKey:        itemKey,
		Checked:        true,
		StageCompleted: change.StageCompleted,
		Advanced:       change.Advanced,
	}
	if change.StageCompleted {
		e.metrics.RecordStage(string(stage), "completed")
		e.logger.Info("Stage completed", "user_id", userID, "project_id", p.ID, "stage", stage)
	}
	if change.Advanced {
		res.NewStage = change.To
		e.metrics.RecordStage(string(change.To), "advanced")
		e.logger.Info("Project advanced", "user_id", userID, "project_id", p.ID, "from", change.From, "to", change.To)
	}

	e.reward(ctx, res, gamification.ActionRequest{
		UserID:      userID,
		Amount:      ItemXP,
		Source:      domain.SourceChecklist,
		SourceID:    p.ID + ":" + string(stage) + ":" + itemKey,
		Description: "Checklist item " + itemKey,
	})
	if change.StageCompleted || p.Progress(stage).Status == domain.StatusCompleted {
		e.reward(ctx, res, gamification.ActionRequest{
			UserID:      userID,
			Amount:      StageCompleteXP,
			Source:      domain.SourceStageComplete,
			SourceID:    p.ID + ":" + string(stage),
			Description: "Stage " + string(stage) + " completed",
		})
	}
	return res, nil
}

// reward grants XP once per source id. Failures are recorded on res and
// logged; the project write has already committed.
func (e *Engine) reward(ctx context.Context, res *Result, req gamification.ActionRequest) {
	if e.gamifier == nil {
		return
	}
	granted, err := e.repo.HasXP(ctx, req.UserID, req.Source, req.SourceID)
	if err == nil && granted {
		return
	}
	var out *gamification.ActionResult
	if err == nil {
		out, err = e.gamifier.Action(ctx, req)
	}
	if out != nil && out.XP != nil {
		res.XPAwarded += req.Amount
		res.LeveledUp = res.LeveledUp || out.XP.LeveledUp
		res.NewLevel = out.XP.NewLevel
		for _, ua := range out.Unlocked {
			if !containsAchievement(res.Unlocked, ua.ID) {
				res.Unlocked = append(res.Unlocked, ua)
			}
		}
	}
	if err != nil {
		e.metrics.RecordGamificationFailure(string(req.Source))
		e.logger.Error("Gamification failed after checklist update",
			"user_id", req.UserID, "project_id", res.Project.ID, "source_id", req.SourceID, "error", err)
		res.GamificationError = err.Error()
	}
}

func containsAchievement(list []domain.UserAchievement, id string) bool {
	for _, ua := range list {
		if ua.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) save(ctx context.Context, p *domain.Project, change Change) error {
	if !change.Mutated() {
		return nil
	}
	v, err := e.repo.UpdateProgress(ctx, p.ID, p.Stage, p.ProgressData, p.Version)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	p.Version = v
	p.UpdatedAt = e.now()
	return nil
}

func (e *Engine) load(ctx context.Context, userID, projectID string, stage domain.StageKey) (*domain.Project, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if !stage.Valid() {
		return nil, domain.Invalid(fmt.Sprintf("unknown stage %q", stage))
	}
	return e.owned(ctx, userID, projectID)
}

func (e *Engine) loadForItem(ctx context.Context, userID, projectID string, stage domain.StageKey, itemKey string) (*domain.Project, []domain.ChecklistItem, error) {
	p, err := e.load(ctx, userID, projectID, stage)
	if err != nil {
		return nil, nil, err
	}
	defs, err := e.repo.ListChecklistItems(ctx, stage)
	if err != nil {
		return nil, nil, fmt.Errorf("load checklist: %w", err)
	}
	if !IsDefined(itemKey, defs) {
		return nil, nil, domain.Invalid(fmt.Sprintf("unknown checklist item %q for stage %s", itemKey, stage))
	}
	return p, defs, nil
}

// owned loads a project and hides projects of other users behind NotFound.
func (e *Engine) owned(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	p, err := e.repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p.OwnerID != userID {
		return nil, domain.NotFound("project", projectID)
	}
	p.ProgressData = p.ProgressData.Clone()
	return p, nil
}
