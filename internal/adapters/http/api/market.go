// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// MarketHandler handles market catalog requests.
type MarketHandler struct {
	deps       Dependencies
	principals *principalResolver
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(deps Dependencies, principals *principalResolver) *MarketHandler {
	return &MarketHandler{deps: deps, principals: principals}
}

// HandleMarket handles GET /market?q= (list or fuzzy search) and
// POST /market (admin: create/update a character).
func (h *MarketHandler) HandleMarket(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, err := h.principals.user(r); err != nil {
			writeDomainError(w, err)
			return
		}
		chars, err := h.deps.Market(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chars)
	case http.MethodPost:
		caller, err := h.principals.user(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		var ch model.Character
		if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		if strings.TrimSpace(ch.Name) == "" || ch.Price < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		created, err := h.deps.AddCharacter(r.Context(), caller.ID, ch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		http.NotFound(w, r)
	}
}

// HandleScores handles GET /market/scores requests: characters per category
// ordered by cumulative score.
func (h *MarketHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if _, err := h.principals.user(r); err != nil {
		writeDomainError(w, err)
		return
	}
	scores, err := h.deps.MarketScores(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// HandleCharacter handles GET /market/{id} and GET /market/{id}/events.
func (h *MarketHandler) HandleCharacter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if _, err := h.principals.user(r); err != nil {
		writeDomainError(w, err)
		return
	}

	// Extract path parameters after /market/
	path := strings.TrimPrefix(r.URL.Path, "/market/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch rest {
	case "":
		ch, err := h.deps.Character(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ch)
	case "events":
		// Per-character history, newest first.
		events, err := h.deps.CharacterHistory(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	default:
		http.NotFound(w, r)
	}
}
