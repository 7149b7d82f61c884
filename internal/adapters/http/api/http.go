// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/ranking"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SnapshotSource
	SubscribersDependencies
}

// SnapshotSource returns the snapshot every read is served from.
type SnapshotSource interface {
	Snapshot() (*service.Snapshot, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	mapsHandler        *MapsHandler
	leaderboardHandler *LeaderboardHandler
	countiesHandler    *CountiesHandler
	subscribersHandler *SubscribersHandler
	dashboardHandler   *dashboardHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit int
	logger   logger.Logger
}

// WithMaxLimit caps the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: ranking.DefaultSize, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		mapsHandler:        NewMapsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		countiesHandler:    NewCountiesHandler(deps),
		subscribersHandler: NewSubscribersHandler(deps, v, cfg.logger),
		dashboardHandler:   newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/maps/{metric}", MetricsMiddleware(s.mapsHandler.HandleGetMap, "maps"))
	mux.HandleFunc("/api/bins/{metric}", MetricsMiddleware(s.mapsHandler.HandleGetBins, "bins"))
	mux.HandleFunc("/api/trend", MetricsMiddleware(s.mapsHandler.HandleGetTrend, "trend"))
	mux.HandleFunc("/api/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/api/counties", MetricsMiddleware(s.countiesHandler.HandleGetCounties, "counties"))
	mux.HandleFunc("/api/subscribers", MetricsMiddleware(s.subscribersHandler.HandleSubscribers, "subscribers"))
	mux.HandleFunc("/api/updates", MetricsMiddleware(s.subscribersHandler.HandlePostUpdate, "updates"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	code, name := status(err)
	writeJSON(w, code, errorResponse{Code: name, Message: publicMessage(err, code)})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Code:    "method_not_allowed",
		Message: http.StatusText(http.StatusMethodNotAllowed),
	})
}
