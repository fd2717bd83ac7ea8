// Package metrics provides Prometheus metrics for the launchpad service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	XPAwarded            *prometheus.CounterVec
	LevelUps             prometheus.Counter
	AchievementsUnlocked *prometheus.CounterVec
	StageTransitions     *prometheus.CounterVec
	ToolCalls            *prometheus.CounterVec
	ToolDuration         *prometheus.HistogramVec
	GamificationFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		XPAwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_xp_awarded_total",
				Help: "Total XP granted by ledger source.",
			},
			[]string{"source"},
		),
		LevelUps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "launchpad_level_ups_total",
				Help: "Total number of level increases.",
			},
		),
		AchievementsUnlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_achievements_unlocked_total",
				Help: "Total achievement unlocks by achievement id.",
			},
			[]string{"achievement"},
		),
		StageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_stage_transitions_total",
				Help: "Stage completions, advances and reopenings by stage.",
			},
			[]string{"stage", "transition"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_tool_calls_total",
				Help: "Tool executions by tool name and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchpad_tool_duration_seconds",
				Help:    "Tool execution duration by tool name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		GamificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_gamification_failures_total",
				Help: "Best-effort gamification steps that failed after a primary write.",
			},
			[]string{"step"},
		),
		registry: reg,
	}

	reg.MustRegister(m.XPAwarded)
	reg.MustRegister(m.LevelUps)
	reg.MustRegister(m.AchievementsUnlocked)
	reg.MustRegister(m.StageTransitions)
	reg.MustRegister(m.ToolCalls)
	reg.MustRegister(m.ToolDuration)
	reg.MustRegister(m.GamificationFailures)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordXP adds amount to the XP counter of source.
func (m *Metrics) RecordXP(source string, amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.XPAwarded.WithLabelValues(source).Add(float64(amount))
}

// RecordLevelUp increments the level-up counter.
func (m *Metrics) RecordLevelUp() {
	if m == nil {
		return
	}
	m.LevelUps.Inc()
}

// RecordAchievement increments the unlock counter.
func (m *Metrics) RecordAchievement(id string) {
	if m == nil {
		return
	}
	m.AchievementsUnlocked.WithLabelValues(id).Inc()
}

// RecordStage increments the stage transition counter.
// transition is one of completed, advanced or reopened.
func (m *Metrics) RecordStage(stage, transition string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(stage, transition).Inc()
}

// RecordTool counts one tool execution and its duration.
func (m *Metrics) RecordTool(tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordGamificationFailure counts a failed best-effort step.
func (m *Metrics) RecordGamificationFailure(step string) {
	if m == nil {
		return
	}
	m.GamificationFailures.WithLabelValues(step).Inc()
}
