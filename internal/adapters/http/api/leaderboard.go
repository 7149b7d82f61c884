package api

import (
	"net/http"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     SnapshotSource
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps SnapshotSource, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /api/leaderboard?metric=M&limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	m, err := metricParam(r)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	n, err := intParam(r, "limit", h.maxLimit)
	if err != nil || n < 1 {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, NewKind(op, ErrLimitExceeded))
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap.Leaderboard(m, n))
}
