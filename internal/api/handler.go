package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lookout-hq/lookout/internal/metrics"
	"github.com/lookout-hq/lookout/internal/scheduler"
)

// Handler serves the read-only operational surface: engine status, check
// metrics and a liveness endpoint. It exposes nothing that mutates state;
// endpoint management lives in the API layer outside this engine.
type Handler struct {
	engine    *scheduler.Engine
	collector *metrics.Collector
	logger    *slog.Logger
}

func NewHandler(engine *scheduler.Engine, collector *metrics.Collector, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		collector: collector,
		logger:    logger,
	}
}

// Routes builds the mux for the introspection server.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.Handle("GET /metrics", h.collector.Handler())
	return mux
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.engine.Status())
}

// healthz reports process liveness, not fleet health: it answers 200 while
// the engine is running even when the breaker is open.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	status := h.engine.Status()
	if !status.Running {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
