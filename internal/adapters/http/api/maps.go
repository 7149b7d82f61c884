package api

import (
	"net/http"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
)

// MapsHandler serves the rendered maps, their class edges and the trend.
type MapsHandler struct {
	deps SnapshotSource
}

// NewMapsHandler creates a new maps handler.
func NewMapsHandler(deps SnapshotSource) *MapsHandler {
	return &MapsHandler{deps: deps}
}

type binsResponse struct {
	Metric  string    `json:"metric"`
	Date    string    `json:"date"`
	Legend  string    `json:"legend"`
	Edges   []float64 `json:"edges"`
	Colors  []string  `json:"colors"`
	Classes int       `json:"classes"`
}

type trendResponse struct {
	Points []types.TrendPoint `json:"points"`
}

// HandleGetMap handles GET /api/maps/{metric}. The body is the embeddable
// HTML fragment, not a full page.
func (h *MapsHandler) HandleGetMap(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_map"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	m, err := metricParam(r)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	art, ok := snap.Artifact(m)
	if !ok {
		writeError(w, NewKind(op, ErrNotFound))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Snapshot-Date", snap.Date().Format(model.DateLayout))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(art.HTML))
}

// HandleGetBins handles GET /api/bins/{metric}.
func (h *MapsHandler) HandleGetBins(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_bins"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	m, err := metricParam(r)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	art, ok := snap.Artifact(m)
	if !ok {
		writeError(w, NewKind(op, ErrNotFound))
		return
	}
	edges := snap.Edges(m)
	writeJSON(w, http.StatusOK, binsResponse{
		Metric:  string(m),
		Date:    snap.Date().Format(model.DateLayout),
		Legend:  m.Legend(),
		Edges:   edges,
		Colors:  art.Colors,
		Classes: edges.Classes(),
	})
}

// HandleGetTrend handles GET /api/trend.
func (h *MapsHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trend"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, trendResponse{Points: snap.Trend().Points()})
}
