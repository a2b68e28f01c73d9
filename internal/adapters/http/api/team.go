// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/circolo-dev/fantacircolo/internal/domain/draft"
)

// TeamHandler handles team commit and reset requests.
type TeamHandler struct {
	deps       Dependencies
	principals *principalResolver
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(deps Dependencies, principals *principalResolver) *TeamHandler {
	return &TeamHandler{deps: deps, principals: principals}
}

// commitRequest carries the client-local draft at commit time: the staged
// character ids plus the cost the client displayed.
type commitRequest struct {
	CharacterIDs []string `json:"character_ids"`
	ExpectedCost int      `json:"expected_cost"`
}

// HandleTeam handles POST /team (commit) and DELETE /team (reset).
func (h *TeamHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCommit(w, r)
	case http.MethodDelete:
		h.handleReset(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *TeamHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.CharacterIDs) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	// Rebuild the draft server-side so caps are enforced on the submitted
	// selection, not just trusted from the client.
	b := draft.NewBuilder(draft.WithCommitted(caller.HasTeam()))
	for _, id := range req.CharacterIDs {
		ch, err := h.deps.Character(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := b.Toggle(ch); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	u, err := h.deps.CommitTeam(r.Context(), caller.ID, b, req.ExpectedCost)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *TeamHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The reset is destructive; the client must send explicit confirmation.
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "confirmation_required", ErrBadRequest)
		return
	}

	u, err := h.deps.ResetTeam(r.Context(), caller.ID, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
