package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapmetrics/internal/executor"
	"github.com/leapstack-labs/leapmetrics/internal/project"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// QueryRequest is a compile request with an optional target database.
type QueryRequest struct {
	core.CompileRequest
	DatabaseID string `json:"database_id,omitempty"`
}

// HealthResponse reports which documents are loaded.
type HealthResponse struct {
	Status string `json:"status"`
	Models bool   `json:"models"`
	Rules  bool   `json:"rules"`
}

// RefreshResponse reports the outcome of a reload.
type RefreshResponse struct {
	Status  string `json:"status"`
	Updated bool   `json:"updated"`
	Message string `json:"message"`
}

// Handlers provides the HTTP handlers.
type Handlers struct {
	project  *project.Context
	executor *executor.Executor
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p *project.Context, e *executor.Executor, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{project: p, executor: e, logger: logger}
}

// Health reports liveness and document availability.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	snap := h.project.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Models: snap.HasModels(), Rules: snap.HasRules()})
}

// Refresh reloads the project documents.
func (h *Handlers) Refresh(w http.ResponseWriter, _ *http.Request) {
	changed, err := h.project.Reload()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	msg := "project unchanged"
	if changed {
		msg = "project reloaded"
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Status: "ok", Updated: changed, Message: msg})
}

// Events streams a "reload" server-sent event after every snapshot change.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.project.Subscribe()
	defer h.project.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			_, _ = fmt.Fprintf(w, "event: reload\ndata: %s\n\n", h.project.Snapshot().Hash)
			flusher.Flush()
		}
	}
}

// ListModels lists the models of the current snapshot.
func (h *Handlers) ListModels(w http.ResponseWriter, _ *http.Request) {
	reg, err := h.project.Registry()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": reg.Summaries()})
}

// DescribeModel returns one model's dimensions, measures and joins.
func (h *Handlers) DescribeModel(w http.ResponseWriter, r *http.Request) {
	reg, err := h.project.Registry()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	desc, err := reg.DescribeModel(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// Compile returns the plan and SQL for a request without executing it.
func (h *Handlers) Compile(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	reg, err := h.project.Registry()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ex, err := h.executor.Explain(reg, req.CompileRequest, req.DatabaseID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// Query compiles and executes a request.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	reg, err := h.project.Registry()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.executor.Run(r.Context(), reg, req.CompileRequest, req.DatabaseID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BusinessContext returns the rules matching a category or concepts.
func (h *Handlers) BusinessContext(w http.ResponseWriter, r *http.Request) {
	var q core.RuleQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, h.logger, err)
		return
	}
	rs, err := h.project.Rules()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rs.MatchRules(q))
}

// Classify returns classifications by name or tags.
func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	var q core.ClassificationQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, h.logger, err)
		return
	}
	rs, err := h.project.Rules()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rs.MatchClassifications(q))
}
