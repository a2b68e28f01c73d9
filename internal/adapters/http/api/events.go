// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	service "github.com/circolo-dev/fantacircolo/internal/app"
)

// EventsHandler handles the scoring endpoints and the event log views.
type EventsHandler struct {
	deps       Dependencies
	principals *principalResolver
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies, principals *principalResolver) *EventsHandler {
	return &EventsHandler{deps: deps, principals: principals}
}

// eventRequest mirrors the admin scoring submission.
type eventRequest struct {
	CharacterID string `json:"character_id"`
	ActionKey   string `json:"action_key"`
	// RequestID, when set, makes retries of the same submission idempotent.
	RequestID string `json:"request_id,omitempty"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.CharacterID) == "":
		return ErrBadRequest
	case strings.TrimSpace(e.ActionKey) == "":
		return ErrBadRequest
	}
	return nil
}

// HandleEvents handles POST /events (admin scoring) and GET /events
// (?scope=admin|public event log, newest first, capped per audience).
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleRecord(w, r)
	case http.MethodGet:
		h.handleLog(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *EventsHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	receipt, err := h.deps.RecordEvent(r.Context(), caller.ID, req.CharacterID, req.ActionKey, req.RequestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if receipt.Duplicate {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *EventsHandler) handleLog(w http.ResponseWriter, r *http.Request) {
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The admin cap applies only to admins asking for the admin scope.
	admin := r.URL.Query().Get("scope") == "admin" && caller.IsAdmin()
	events, err := h.deps.RecentEvents(r.Context(), admin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleActions handles GET /actions requests: the fixed scoring catalog.
func (h *EventsHandler) HandleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Actions())
}

// rescoreRequest carries the full new score per character id.
type rescoreRequest struct {
	Scores map[string]int `json:"scores"`
}

// HandleRescore handles POST /rescore requests (admin bulk recompute).
func (h *EventsHandler) HandleRescore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req rescoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Scores) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	receipt, err := h.deps.Rescore(r.Context(), caller.ID, req.Scores)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// HandleDrift handles GET /drift requests (admin): users whose stored totals
// diverge from a full recompute.
func (h *EventsHandler) HandleDrift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	caller, err := h.principals.user(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !caller.IsAdmin() {
		writeDomainError(w, service.ErrUnauthorized)
		return
	}

	drifted, err := h.deps.DriftAudit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drifted)
}
