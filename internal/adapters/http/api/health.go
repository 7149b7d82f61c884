package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

// HealthHandler handles liveness, readiness and metrics requests.
type HealthHandler struct {
	deps    SnapshotSource
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps SnapshotSource) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// MetricsHandler serves the Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler { return h.metrics }

// HandleHealth handles GET /healthz requests.
// If the Accept header asks for openmetrics or text/plain it returns
// Prometheus metrics. Otherwise it returns a JSON liveness status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/openmetrics-text") || strings.Contains(accept, "text/plain") {
		h.metrics.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady handles GET /readyz. The process is ready once a snapshot is
// installed.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"snapshot": snap.Date().Format(model.DateLayout),
	})
}
