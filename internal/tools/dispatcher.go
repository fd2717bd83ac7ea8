package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/metrics"
)

// ErrorResult is returned for every failed tool call.
type ErrorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Dispatcher runs tools by name and never fails past its boundary.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, metrics: m, logger: logger}
}

// Schemas returns the schemas of every registered tool.
func (d *Dispatcher) Schemas() []Schema {
	return d.registry.Schemas()
}

// Execute runs tool name for userID and returns its JSON result. Unknown
// tools, invalid arguments, handler errors and panics all come back as an
// ErrorResult.
func (d *Dispatcher) Execute(ctx context.Context, userID, name string, args json.RawMessage) (out json.RawMessage) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool panicked", "tool", name, "user_id", userID, "panic", r)
			outcome = "panic"
			out = errorJSON("internal error while running " + name)
		}
		d.metrics.RecordTool(name, outcome, time.Since(start).Seconds())
	}()

	if userID == "" {
		outcome = "unauthorized"
		return errorJSON(domain.ErrUnauthorized.Error())
	}
	t, ok := d.registry.Get(name)
	if !ok {
		outcome = "unknown"
		return errorJSON("unknown tool: " + name)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := t.Execute(ctx, userID, args)
	if err != nil {
		outcome = "error"
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("Tool failed", "tool", name, "user_id", userID, "error", err)
		}
		return errorJSON(domain.Message(err))
	}

	b, err := json.Marshal(result)
	if err != nil {
		outcome = "error"
		d.logger.Error("Tool result not serializable", "tool", name, "error", err)
		return errorJSON(fmt.Sprintf("encode %s result: %v", name, err))
	}
	return b
}

func errorJSON(msg string) json.RawMessage {
	b, _ := json.Marshal(ErrorResult{Success: false, Error: msg})
	return b
}
