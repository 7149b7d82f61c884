package api

import (
	"net/http"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// CountiesHandler lists the snapshot's counties and locates points.
type CountiesHandler struct {
	deps SnapshotSource
}

// NewCountiesHandler creates a new counties handler.
func NewCountiesHandler(deps SnapshotSource) *CountiesHandler {
	return &CountiesHandler{deps: deps}
}

type countiesResponse struct {
	Date     string   `json:"date"`
	Counties []string `json:"counties"`
}

type locateResponse struct {
	geo.County
	Reported bool `json:"reported"`
}

// HandleGetCounties handles GET /api/counties. With lat and lng it returns
// the boundary containing the point instead of the name list.
func (h *CountiesHandler) HandleGetCounties(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_counties"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}

	q := r.URL.Query()
	if !q.Has("lat") && !q.Has("lng") {
		writeJSON(w, http.StatusOK, countiesResponse{
			Date:     snap.Date().Format(model.DateLayout),
			Counties: snap.CountyNames(),
		})
		return
	}

	lat, err := floatParam(r, "lat")
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	lng, err := floatParam(r, "lng")
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	c, err := snap.Boundaries().Locate(lat, lng)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	_, reported := snap.CanonicalCounty(c.Name)
	writeJSON(w, http.StatusOK, locateResponse{County: c, Reported: reported})
}
