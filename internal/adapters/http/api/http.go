// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/circolo-dev/fantacircolo/internal/adapters/auth"
	"github.com/circolo-dev/fantacircolo/internal/adapters/repository"
	service "github.com/circolo-dev/fantacircolo/internal/app"
	"github.com/circolo-dev/fantacircolo/internal/domain/actions"
	"github.com/circolo-dev/fantacircolo/internal/domain/draft"
	"github.com/circolo-dev/fantacircolo/internal/domain/model"
	"github.com/circolo-dev/fantacircolo/internal/domain/rank"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SignIn(ctx context.Context, p model.Principal) (model.User, error)
	CurrentUser(ctx context.Context, uid string) (model.User, error)

	Market(ctx context.Context, query string) ([]model.Character, error)
	Character(ctx context.Context, id string) (model.Character, error)
	MarketScores(ctx context.Context) (map[model.Category][]model.Character, error)
	Actions() []actions.Action

	CommitTeam(ctx context.Context, uid string, b *draft.Builder, expectedCost int) (model.User, error)
	ResetTeam(ctx context.Context, uid string, now time.Time) (model.User, error)

	RecordEvent(ctx context.Context, adminUID, characterID, actionKey, requestID string) (service.Receipt, error)
	Rescore(ctx context.Context, adminUID string, scores map[string]int) (service.RescoreReceipt, error)
	AddCharacter(ctx context.Context, adminUID string, ch model.Character) (model.Character, error)
	AllowEmail(ctx context.Context, adminUID, email string) error

	Standings(ctx context.Context, viewerUID string) ([]rank.Row, error)
	RecentEvents(ctx context.Context, admin bool) ([]model.Event, error)
	CharacterHistory(ctx context.Context, characterID string) ([]model.Event, error)
	DriftAudit(ctx context.Context) ([]service.DriftRow, error)
	GetStats(ctx context.Context) map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	sessionHandler     *SessionHandler
	marketHandler      *MarketHandler
	teamHandler        *TeamHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	statsHandler       *StatsHandler
	healthHandler      *HealthHandler

	maxLeaderboardRows int
}

// Option configures the API server.
type Option func(*Server)

// WithMaxLeaderboardRows bounds the ?limit parameter on GET /leaderboard.
func WithMaxLeaderboardRows(n int) Option {
	return func(s *Server) {
		s.maxLeaderboardRows = n
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, verifier auth.Verifier, opts ...Option) *Server {
	principals := newPrincipalResolver(verifier, deps)
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	s.sessionHandler = NewSessionHandler(deps, principals)
	s.marketHandler = NewMarketHandler(deps, principals)
	s.teamHandler = NewTeamHandler(deps, principals)
	s.eventsHandler = NewEventsHandler(deps, principals)
	s.leaderboardHandler = NewLeaderboardHandler(deps, principals, s.maxLeaderboardRows)
	s.statsHandler = NewStatsHandler(deps)
	s.healthHandler = NewHealthHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleSession, "session"))
	mux.HandleFunc("/market", MetricsMiddleware(s.marketHandler.HandleMarket, "market"))
	mux.HandleFunc("/market/scores", MetricsMiddleware(s.marketHandler.HandleScores, "market_scores"))
	mux.HandleFunc("/market/", MetricsMiddleware(s.marketHandler.HandleCharacter, "market_item"))
	mux.HandleFunc("/actions", MetricsMiddleware(s.eventsHandler.HandleActions, "actions"))
	mux.HandleFunc("/team", MetricsMiddleware(s.teamHandler.HandleTeam, "team"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleEvents, "events"))
	mux.HandleFunc("/rescore", MetricsMiddleware(s.eventsHandler.HandleRescore, "rescore"))
	mux.HandleFunc("/allowlist", MetricsMiddleware(s.sessionHandler.HandleAllow, "allowlist"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/drift", MetricsMiddleware(s.eventsHandler.HandleDrift, "drift"))
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain sentinels to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "not_authenticated", err)
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err)
	case errors.Is(err, draft.ErrAlreadyCommitted):
		writeError(w, http.StatusConflict, "already_committed", err)
	case errors.Is(err, draft.ErrCapacityExceeded), errors.Is(err, draft.ErrOverBudget):
		writeError(w, http.StatusUnprocessableEntity, "capacity_exceeded", err)
	case errors.Is(err, service.ErrResetClosed):
		writeError(w, http.StatusConflict, "reset_closed", err)
	case errors.Is(err, service.ErrCostMismatch), errors.Is(err, actions.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, "persistence_failure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
