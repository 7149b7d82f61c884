package feedgen

import (
	"net/http"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// Served paths.
const (
	FeedPath       = "/feed.csv"
	BoundariesPath = "/counties.json"
)

// Handler serves the encoded feed and boundaries.
type Handler struct {
	feed       []byte
	boundaries []byte
	log        logger.Logger
}

// NewHandler encodes ds once and serves the bytes on every request.
func NewHandler(ds *Dataset, lg logger.Logger) (*Handler, error) {
	feed, err := ds.CSV()
	if err != nil {
		return nil, err
	}
	b, err := ds.GeoJSON()
	if err != nil {
		return nil, err
	}
	return &Handler{feed: feed, boundaries: b, log: lg}, nil
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+FeedPath, h.serve("text/csv; charset=utf-8", h.feed))
	mux.HandleFunc("GET "+BoundariesPath, h.serve("application/geo+json", h.boundaries))
}

func (h *Handler) serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.log.Debug(r.Context(), "serving generated file",
			logger.String("path", r.URL.Path),
			logger.Int("bytes", len(body)))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
