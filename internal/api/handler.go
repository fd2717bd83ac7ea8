// Package api provides HTTP handlers for the launchpad API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/identity"
	"github.com/ashureev/launchpad/internal/learning"
	"github.com/ashureev/launchpad/internal/progress"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/ashureev/launchpad/internal/tools"
)

const maxBodyBytes = 1 << 20

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Repo         store.Repository
	Engine       *progress.Engine
	Gamification *gamification.Service
	Learning     *learning.Service
	Tools        *tools.Dispatcher
	Logger       *slog.Logger
}

// Handler serves the launchpad API.
type Handler struct {
	repo      store.Repository
	engine    *progress.Engine
	gamify    *gamification.Service
	learning  *learning.Service
	tools     *tools.Dispatcher
	directory identity.Directory
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{
		repo:     deps.Repo,
		engine:   deps.Engine,
		gamify:   deps.Gamification,
		learning: deps.Learning,
		tools:    deps.Tools,
		logger:   deps.Logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrFreezeAlreadyUsed),
		errors.Is(err, domain.ErrStreakNotAtRisk):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors are logged and
// reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path,
			"user_id", identity.UserIDFromContext(r.Context()), "error", err)
		Error(w, status, "internal error")
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		Error(w, status, domain.ErrConflict.Error())
		return
	}
	Error(w, status, domain.Message(err))
}

// userID resolves the current account or writes 401.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	a, err := h.directory.CurrentUser(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	return a.ID, true
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.Invalid("invalid request body: " + err.Error())
}
