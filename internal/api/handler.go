package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/funnelquery/internal/compile"
	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
	"github.com/gyaneshwarpardhi/funnelquery/internal/dsl"
	"github.com/gyaneshwarpardhi/funnelquery/internal/engine"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
	"github.com/gyaneshwarpardhi/funnelquery/internal/metrics"
	"github.com/gyaneshwarpardhi/funnelquery/internal/store"
)

// Handler holds all HTTP handler dependencies. st may be nil when no
// database is configured.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	st     store.Store
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader, st store.Store) http.Handler {
	h := &Handler{eng: eng, loader: loader, st: st, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/compile", h.compileOne)
	h.mux.HandleFunc("POST /v1/compile/batch", h.compileBatch)
	h.mux.HandleFunc("GET /v1/funnel", h.getFunnel)
	h.mux.HandleFunc("GET /v1/funnel/queries", h.listQueries)
	h.mux.HandleFunc("GET /v1/connections", h.listConnections)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

type compileRequest struct {
	EdgeID    string `json:"edge_id"`
	Condition string `json:"condition"`
}

// POST /v1/compile — synchronous single-condition compilation.
func (h *Handler) compileOne(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.EdgeID == "" {
		writeError(w, http.StatusBadRequest, "edge_id is required")
		return
	}

	res, err := h.eng.CompileSync(r.Context(), req.EdgeID, req.Condition)
	if err != nil {
		var perr *dsl.ParseError
		var nerr *compile.UnknownNodeError
		var eerr *compile.UnknownEdgeError
		switch {
		case errors.As(err, &perr):
			metrics.ParseErrors.Inc()
			writeError(w, http.StatusUnprocessableEntity, perr.Error())
		case errors.As(err, &nerr):
			writeError(w, http.StatusUnprocessableEntity, nerr.Error())
		case errors.As(err, &eerr):
			writeError(w, http.StatusNotFound, eerr.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/compile/batch — whole-graph pass; persisted when a store is
// configured.
func (h *Handler) compileBatch(w http.ResponseWriter, r *http.Request) {
	report := h.eng.CompileGraph()

	persisted := false
	if h.st != nil {
		if err := h.st.SaveFunnel(r.Context(), report.Graph); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("pass compiled but funnel not persisted: %s", err))
			return
		}
		if err := h.st.SavePass(r.Context(), report); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("pass compiled but not persisted: %s", err))
			return
		}
		persisted = true
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pass_id":   report.PassID,
		"funnel_id": report.FunnelID,
		"compiled":  report.Compiled,
		"errors":    report.Errors,
		"persisted": persisted,
	})
}

// GET /v1/funnel — the current graph snapshot.
func (h *Handler) getFunnel(w http.ResponseWriter, r *http.Request) {
	g := h.eng.Graph()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    g.ID(),
		"nodes": g.Nodes(),
		"edges": g.Edges(),
	})
}

// GET /v1/funnel/queries — compiled queries of the latest persisted pass.
func (h *Handler) listQueries(w http.ResponseWriter, r *http.Request) {
	if h.st == nil {
		writeError(w, http.StatusNotImplemented, "no store configured")
		return
	}
	g := h.eng.Graph()
	queries, err := h.st.ListCompiledQueries(r.Context(), g.ID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no compilation pass persisted yet")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"funnel_id": g.ID(),
		"queries":   queries,
	})
}

// GET /v1/connections — configured capability records.
func (h *Handler) listConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": h.eng.Table().Connections(),
	})
}

// POST /v1/config/reload — re-read config from disk and swap the graph.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	g, err := funnel.Build(cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.Swap(cfg, g)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"nodes":    g.NodeCount(),
		"edges":    g.EdgeCount(),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the compile queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
