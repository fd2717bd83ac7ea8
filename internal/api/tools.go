package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListTools returns the schemas of every tool.
func (h *Handler) ListTools(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.tools.Schemas())
}

// ExecuteTool runs a tool with the request body as its arguments. Tool
// failures are part of the 200 response body.
func (h *Handler) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	args, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(args) > 0 && !json.Valid(args) {
		Error(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	out := h.tools.Execute(r.Context(), userID, chi.URLParam(r, "name"), args)
	JSON(w, http.StatusOK, out)
}
