package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/engine"
	"github.com/gyaneshwarpardhi/flowlens/internal/render"
	"github.com/gyaneshwarpardhi/flowlens/internal/source"
)

const analyzeTimeout = 2 * time.Minute

// maxBodyBytes caps POST /v1/analyze bodies.
var maxBodyBytes int64 = 32 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. Successful config
// reloads, from the API or the file watcher, are swapped into eng.
func New(eng *engine.Engine, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}
	loader.OnChange(func(cfg *config.AnalysisConfig) {
		eng.Swap(cfg)
		slog.Info("analysis config swapped", "version", cfg.Version, "terminal_path", cfg.Funnel.TerminalPath)
	})

	h.mux.HandleFunc("POST /v1/analyze", h.analyze)
	h.mux.HandleFunc("GET /v1/config", h.getConfig)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return requestIDMiddleware(loggingMiddleware(h.mux))
}

// POST /v1/analyze — JSONL body in, report out. ?format=text|yaml selects a
// non-JSON rendering.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	renderer, err := render.New(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	scanner := source.NewScanner(body)
	rep, err := h.eng.Run(ctx, scanner.Records())
	if readErr := scanner.Err(); readErr != nil {
		writeError(w, statusFor(readErr, http.StatusBadRequest), readErr.Error())
		return
	}
	if err != nil {
		writeError(w, statusFor(err, http.StatusServiceUnavailable), err.Error())
		return
	}
	writeReport(w, format, renderer, rep)
}

// GET /v1/config — the configuration new analyses will use.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   h.loader.Path(),
		"config": h.eng.Config(),
	})
}

// POST /v1/config/reload — re-read the config file; an invalid file is
// refused and the running config stays in place.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader.Path() == "" {
		writeError(w, http.StatusConflict, "running with built-in defaults; no config file to reload")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"version":  cfg.Version,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
