// Package gamification implements the XP ledger, streak tracking, achievement
// evaluation and the orchestrator that runs them after user actions.
package gamification

import (
	"log/slog"
	"time"

	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/store"
)

// DefaultUnlockWindow is how far back an earned_at may lie for an achievement
// to count as unlocked by the current action.
const DefaultUnlockWindow = 10 * time.Second

// Clock returns the current time.
type Clock func() time.Time

// Options configures the gamification components.
type Options struct {
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	Clock           Clock
	UnlockWindow    time.Duration
	DefaultTimezone string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.UnlockWindow <= 0 {
		o.UnlockWindow = DefaultUnlockWindow
	}
	if o.DefaultTimezone == "" {
		o.DefaultTimezone = "UTC"
	}
	return o
}

// Service bundles the components over one repository.
type Service struct {
	Ledger       *Ledger
	Evaluator    *Evaluator
	Orchestrator *Orchestrator
	Streaks      *StreakTracker
}

// New wires the ledger, evaluator, orchestrator and streak tracker.
// The evaluator rewards through the ledger only.
func New(repo store.Repository, opts Options) *Service {
	opts = opts.withDefaults()

	ledger := &Ledger{repo: repo, metrics: opts.Metrics, logger: opts.Logger, now: opts.Clock}
	evaluator := &Evaluator{repo: repo, ledger: ledger, metrics: opts.Metrics, logger: opts.Logger, now: opts.Clock}
	orchestrator := &Orchestrator{
		ledger:    ledger,
		evaluator: evaluator,
		repo:      repo,
		window:    opts.UnlockWindow,
		logger:    opts.Logger,
		now:       opts.Clock,
	}
	streaks := &StreakTracker{
		repo:         repo,
		orchestrator: orchestrator,
		metrics:      opts.Metrics,
		defaultTZ:    opts.DefaultTimezone,
		logger:       opts.Logger,
		now:          opts.Clock,
	}
	return &Service{Ledger: ledger, Evaluator: evaluator, Orchestrator: orchestrator, Streaks: streaks}
}
