// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SessionHandler handles sign-in and allow-list administration.
type SessionHandler struct {
	deps       Dependencies
	principals *principalResolver
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies, principals *principalResolver) *SessionHandler {
	return &SessionHandler{deps: deps, principals: principals}
}

// HandleSession handles POST /session (sign-in plus provisioning) and
// GET /session (current user).
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodGet:
		// Resolution runs the allow-list gate and idempotent
		// provisioning, so both verbs return the same document.
		u, err := h.principals.user(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	default:
		http.NotFound(w, r)
	}
}

type allowRequest struct {
	Email string `json:"email"`
}

// HandleAllow handles POST /allowlist requests (admin only).
func (h *SessionHandler) HandleAllow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req allowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if err := h.deps.AllowEmail(r.Context(), caller.ID, req.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "allowed", "email": req.Email})
}
