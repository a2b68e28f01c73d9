// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
)

const defaultMaxLeaderboardRows = 100

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps       Dependencies
	principals *principalResolver
	maxRows    int
}

// NewLeaderboardHandler creates a new leaderboard handler. maxRows bounds
// the ?limit query parameter.
func NewLeaderboardHandler(deps Dependencies, principals *principalResolver, maxRows int) *LeaderboardHandler {
	if maxRows <= 0 {
		maxRows = defaultMaxLeaderboardRows
	}
	return &LeaderboardHandler{deps: deps, principals: principals, maxRows: maxRows}
}

// HandleGetLeaderboard handles GET /leaderboard requests: every user sorted
// by score descending, top three annotated, the viewer's own row flagged.
// An optional ?limit truncates the result, clamped to the configured maximum.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows, err := h.deps.Standings(r.Context(), caller.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	limit := h.maxRows
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", errInvalidLimit)
			return
		}
		if n < limit {
			limit = n
		}
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	writeJSON(w, http.StatusOK, rows)
}
