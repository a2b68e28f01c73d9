// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/circolo-dev/fantacircolo/internal/adapters/repository"
	"github.com/circolo-dev/fantacircolo/internal/domain/actions"
	"github.com/circolo-dev/fantacircolo/internal/domain/dedupe"
	"github.com/circolo-dev/fantacircolo/internal/domain/draft"
	"github.com/circolo-dev/fantacircolo/internal/domain/model"
	"github.com/circolo-dev/fantacircolo/internal/domain/rank"
	"github.com/circolo-dev/fantacircolo/pkg/logger"
	"github.com/circolo-dev/fantacircolo/pkg/metrics"
)

// Default service configuration.
const (
	defaultStartingCredits  = 100
	defaultDedupeSize       = 10_000
	defaultAdminEventLimit  = 20
	defaultPublicEventLimit = 30
)

// defaultResetDeadline gates team resets when no deadline is configured.
var defaultResetDeadline = time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)

// Service implements the game rules on top of the document store.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper

	startingCredits  int
	resetDeadline    time.Time
	dedupeSize       int
	adminEventLimit  int
	publicEventLimit int

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing document store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStartingCredits sets the budget granted on provisioning and reset.
func WithStartingCredits(credits int) Option {
	return func(s *Service) {
		if credits >= 0 {
			s.startingCredits = credits
		}
	}
}

// WithResetDeadline sets the instant after which team resets are refused.
func WithResetDeadline(deadline time.Time) Option {
	return func(s *Service) {
		if !deadline.IsZero() {
			s.resetDeadline = deadline
		}
	}
}

// WithDedupeSize bounds the scoring request-id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithEventLimits caps the admin and public event logs.
func WithEventLimits(admin, public int) Option {
	return func(s *Service) {
		if admin > 0 {
			s.adminEventLimit = admin
		}
		if public > 0 {
			s.publicEventLimit = public
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		startingCredits:  defaultStartingCredits,
		resetDeadline:    defaultResetDeadline,
		dedupeSize:       defaultDedupeSize,
		adminEventLimit:  defaultAdminEventLimit,
		publicEventLimit: defaultPublicEventLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("%w: no store configured", ErrNotStarted)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.started = true
	s.logger.Info(ctx, "fantacircolo service started",
		logger.Int("startingCredits", s.startingCredits),
		logger.String("resetDeadline", s.resetDeadline.Format(time.RFC3339)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	s.started = false
	s.logger.Info(context.Background(), "fantacircolo service stopped")
}

// SignIn gates the principal against the allow-list and provisions its user
// document on first successful login. Provisioning is idempotent.
func (s *Service) SignIn(ctx context.Context, p model.Principal) (model.User, error) {
	if p.UID == "" {
		return model.User{}, ErrNotAuthenticated
	}

	allowed, err := s.store.IsAllowed(ctx, p.Email)
	if err != nil {
		return model.User{}, err
	}
	if !allowed {
		s.logger.Warn(ctx, "unauthorized access attempt", logger.String("email", p.Email))
		return model.User{}, fmt.Errorf("%w: %s is not on the allow-list", ErrUnauthorized, p.Email)
	}

	u, err := s.store.GetUser(ctx, p.UID)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, repository.ErrNotFound):
		// First sign-in: provision with defaults.
	default:
		return model.User{}, err
	}

	u = model.User{
		ID:          p.UID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Credits:     s.startingCredits,
		Role:        model.RoleUser,
		Team:        nil,
		FantaScore:  0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		// A concurrent first sign-in may have provisioned already.
		if errors.Is(err, repository.ErrExists) {
			return s.store.GetUser(ctx, p.UID)
		}
		return model.User{}, err
	}
	s.logger.Info(ctx, "provisioned user", logger.String("uid", p.UID), logger.String("email", p.Email))
	return u, nil
}

// CurrentUser returns the caller's own roster document.
func (s *Service) CurrentUser(ctx context.Context, uid string) (model.User, error) {
	if uid == "" {
		return model.User{}, ErrNotAuthenticated
	}
	return s.store.GetUser(ctx, uid)
}

// WatchSelf subscribes to the caller's own roster document.
func (s *Service) WatchSelf(ctx context.Context, uid string) (<-chan model.User, func(), error) {
	if uid == "" {
		return nil, nil, ErrNotAuthenticated
	}
	return s.store.WatchUser(ctx, uid)
}

// Market lists draftable characters ordered by name. A non-empty query
// fuzzy-ranks characters by name instead.
func (s *Service) Market(ctx context.Context, query string) ([]model.Character, error) {
	chars, err := s.store.ListCharacters(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return chars, nil
	}

	names := make([]string, len(chars))
	byName := make(map[string][]model.Character, len(chars))
	for i, ch := range chars {
		names[i] = ch.Name
		byName[ch.Name] = append(byName[ch.Name], ch)
	}

	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)

	out := make([]model.Character, 0, len(ranks))
	seen := make(map[string]struct{})
	for _, r := range ranks {
		if _, ok := seen[r.Target]; ok {
			continue
		}
		seen[r.Target] = struct{}{}
		out = append(out, byName[r.Target]...)
	}
	return out, nil
}

// Character returns one market item.
func (s *Service) Character(ctx context.Context, id string) (model.Character, error) {
	return s.store.GetCharacter(ctx, id)
}

// MarketScores groups the market per category ordered by cumulative score.
func (s *Service) MarketScores(ctx context.Context) (map[model.Category][]model.Character, error) {
	chars, err := s.store.ListCharacters(ctx)
	if err != nil {
		return nil, err
	}
	return rank.ScoresByCategory(chars), nil
}

// Actions returns the fixed scoring-action catalog.
func (s *Service) Actions() []actions.Action {
	return actions.All()
}

// CommitTeam persists the staged draft as the caller's permanent team and
// debits its cost in one atomic write. expectedCost guards against a stale
// client; it must equal the draft's current total.
func (s *Service) CommitTeam(ctx context.Context, uid string, b *draft.Builder, expectedCost int) (model.User, error) {
	if uid == "" {
		return model.User{}, ErrNotAuthenticated
	}
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return model.User{}, err
	}
	if u.HasTeam() {
		return model.User{}, draft.ErrAlreadyCommitted
	}
	if cost := b.TotalCost(); cost != expectedCost {
		return model.User{}, fmt.Errorf("%w: submitted %d, staged %d", ErrCostMismatch, expectedCost, cost)
	}
	if b.OverBudget(u.Credits) {
		return model.User{}, fmt.Errorf("%w: cost %d, credits %d", draft.ErrOverBudget, b.TotalCost(), u.Credits)
	}

	batch := repository.NewBatch()
	batch.UserPatches[uid] = repository.UserPatch{
		SetTeam:    true,
		Team:       b.Team(),
		SetCredits: true,
		Credits:    u.Credits - expectedCost,
	}
	if err := s.store.Apply(ctx, batch); err != nil {
		metrics.RecordBatchFailure()
		// Local draft state stays intact so the user may retry unchanged.
		return model.User{}, err
	}
	metrics.RecordBatchCommit()
	metrics.RecordTeamCommitted()
	b.MarkCommitted()

	s.logger.Info(ctx, "team committed",
		logger.String("uid", uid),
		logger.Int("cost", expectedCost),
	)
	return s.store.GetUser(ctx, uid)
}

// ResetOpen reports whether team resets are still available at now. The gate
// is a pure function of the clock and the configured deadline.
func (s *Service) ResetOpen(now time.Time) bool {
	return now.Before(s.resetDeadline)
}

// ResetTeam clears the caller's team, restores the starting credits and
// zeroes the total in one write. Destructive and available only before the
// deadline; the caller must have confirmed explicitly.
func (s *Service) ResetTeam(ctx context.Context, uid string, now time.Time) (model.User, error) {
	if uid == "" {
		return model.User{}, ErrNotAuthenticated
	}
	if !s.ResetOpen(now) {
		return model.User{}, ErrResetClosed
	}
	if _, err := s.store.GetUser(ctx, uid); err != nil {
		return model.User{}, err
	}

	batch := repository.NewBatch()
	batch.UserPatches[uid] = repository.UserPatch{
		SetTeam:    true,
		Team:       nil,
		SetCredits: true,
		Credits:    s.startingCredits,
		SetScore:   true,
		Score:      0,
	}
	if err := s.store.Apply(ctx, batch); err != nil {
		metrics.RecordBatchFailure()
		return model.User{}, err
	}
	metrics.RecordBatchCommit()
	metrics.RecordTeamReset()

	s.logger.Info(ctx, "team reset", logger.String("uid", uid))
	return s.store.GetUser(ctx, uid)
}

// Receipt summarizes a recorded scoring event for operator feedback.
type Receipt struct {
	EventID       string `json:"event_id,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
	Points        int    `json:"points"`
	TotalUsers    int    `json:"total_users"`
	AffectedUsers int    `json:"affected_users"`
	Duplicate     bool   `json:"duplicate"`
}

// RecordEvent assigns an action's points to a character, appends an event and
// propagates the delta to every user whose team contains the character, all
// in one atomic batch. requestID, when supplied, makes retries idempotent.
func (s *Service) RecordEvent(ctx context.Context, adminUID, characterID, actionKey, requestID string) (Receipt, error) {
	admin, err := s.requireAdmin(ctx, adminUID)
	if err != nil {
		return Receipt{}, err
	}

	action, err := actions.Lookup(actionKey)
	if err != nil {
		return Receipt{}, err
	}

	if requestID != "" && s.deduper.SeenAndRecord(ctx, requestID) {
		metrics.RecordEventDuplicate()
		return Receipt{Duplicate: true}, nil
	}

	fail := func(err error) (Receipt, error) {
		if requestID != "" {
			s.deduper.Unrecord(ctx, requestID)
		}
		return Receipt{}, err
	}

	ch, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return fail(err)
	}

	ev := model.Event{
		CharacterID:   ch.ID,
		CharacterName: ch.Name,
		ActionKey:     action.Key,
		ActionLabel:   action.Label,
		Points:        action.Points,
		Timestamp:     time.Now().UTC(),
	}

	batch := repository.NewBatch()
	batch.CharacterScores[ch.ID] = ch.FantaScore + action.Points
	batch.Events = append(batch.Events, ev)

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fail(err)
	}
	affected := 0
	for _, u := range users {
		if u.Team.Contains(ch.ID, ch.Name) {
			batch.UserScoreDeltas[u.ID] += action.Points
			affected++
		}
	}

	if err := s.store.Apply(ctx, batch); err != nil {
		metrics.RecordBatchFailure()
		return fail(err)
	}
	metrics.RecordBatchCommit()
	metrics.RecordEvent(affected)
	metrics.UpdateTotalUsers(len(users))

	s.logger.Info(ctx, "scoring event recorded",
		logger.String("admin", admin.ID),
		logger.String("character", ch.Name),
		logger.String("action", action.Key),
		logger.Int("points", action.Points),
		logger.Int("affectedUsers", affected),
		logger.Int("totalUsers", len(users)),
	)
	return Receipt{
		CharacterName: ch.Name,
		Points:        action.Points,
		TotalUsers:    len(users),
		AffectedUsers: affected,
	}, nil
}

// RescoreReceipt summarizes a bulk recompute run.
type RescoreReceipt struct {
	CharactersUpdated int `json:"characters_updated"`
	UsersUpdated      int `json:"users_updated"`
}

// Rescore is the authoritative repair path: it sets every submitted character
// score and recomputes each user's total from scratch as the sum of its team
// members' new scores, matching by id first and by name as a fallback. The
// whole write commits atomically.
func (s *Service) Rescore(ctx context.Context, adminUID string, scores map[string]int) (RescoreReceipt, error) {
	if _, err := s.requireAdmin(ctx, adminUID); err != nil {
		return RescoreReceipt{}, err
	}

	chars, err := s.store.ListCharacters(ctx)
	if err != nil {
		return RescoreReceipt{}, err
	}
	scoresByName := make(map[string]int)
	for _, ch := range chars {
		if score, ok := scores[ch.ID]; ok {
			scoresByName[ch.Name] = score
		}
	}

	batch := repository.NewBatch()
	for id, score := range scores {
		batch.CharacterScores[id] = score
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return RescoreReceipt{}, err
	}
	for _, u := range users {
		total := 0
		for _, m := range u.Team.Members() {
			if score, ok := scores[m.ID]; ok {
				total += score
			} else if score, ok := scoresByName[m.Name]; ok {
				total += score
			}
		}
		batch.UserScoreSets[u.ID] = total
	}

	if err := s.store.Apply(ctx, batch); err != nil {
		metrics.RecordBatchFailure()
		return RescoreReceipt{}, err
	}
	metrics.RecordBatchCommit()
	metrics.RecordRescore()

	s.logger.Info(ctx, "bulk rescore applied",
		logger.Int("characters", len(scores)),
		logger.Int("users", len(users)),
	)
	return RescoreReceipt{CharactersUpdated: len(scores), UsersUpdated: len(users)}, nil
}

// AddCharacter creates or updates a market item. Admin only.
func (s *Service) AddCharacter(ctx context.Context, adminUID string, ch model.Character) (model.Character, error) {
	if _, err := s.requireAdmin(ctx, adminUID); err != nil {
		return model.Character{}, err
	}
	return s.store.PutCharacter(ctx, ch)
}

// AllowEmail adds an email to the allow-list. Admin only.
func (s *Service) AllowEmail(ctx context.Context, adminUID, email string) error {
	if _, err := s.requireAdmin(ctx, adminUID); err != nil {
		return err
	}
	return s.store.Allow(ctx, email)
}

// Standings returns the leaderboard annotated for the viewer.
func (s *Service) Standings(ctx context.Context, viewerUID string) ([]rank.Row, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	metrics.UpdateTotalUsers(len(users))
	return rank.Standings(users, viewerUID), nil
}

// RecentEvents returns the event log newest-first, capped per audience.
func (s *Service) RecentEvents(ctx context.Context, admin bool) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	limit := s.publicEventLimit
	if admin {
		limit = s.adminEventLimit
	}
	return rank.SortEvents(events, limit), nil
}

// CharacterHistory returns one character's events newest-first.
func (s *Service) CharacterHistory(ctx context.Context, characterID string) ([]model.Event, error) {
	if _, err := s.store.GetCharacter(ctx, characterID); err != nil {
		return nil, err
	}
	events, err := s.store.ListCharacterEvents(ctx, characterID)
	if err != nil {
		return nil, err
	}
	return rank.SortEvents(events, 0), nil
}

// DriftRow reports one user whose stored total diverges from a full
// recompute against current character scores.
type DriftRow struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Stored      int    `json:"stored"`
	Computed    int    `json:"computed"`
}

// DriftAudit recomputes every user's total from current character scores and
// reports divergences from the stored totals. It never writes; the bulk
// rescore is the designated repair.
func (s *Service) DriftAudit(ctx context.Context) ([]DriftRow, error) {
	chars, err := s.store.ListCharacters(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(chars))
	byName := make(map[string]int, len(chars))
	for _, ch := range chars {
		byID[ch.ID] = ch.FantaScore
		byName[ch.Name] = ch.FantaScore
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []DriftRow
	for _, u := range users {
		total := 0
		for _, m := range u.Team.Members() {
			if score, ok := byID[m.ID]; ok {
				total += score
			} else if score, ok := byName[m.Name]; ok {
				total += score
			}
		}
		if total != u.FantaScore {
			drifted = append(drifted, DriftRow{
				UserID:      u.ID,
				DisplayName: u.DisplayName,
				Stored:      u.FantaScore,
				Computed:    total,
			})
		}
	}
	metrics.UpdateDriftUsers(len(drifted))

	if len(drifted) > 0 {
		s.logger.Warn(ctx, "score drift detected",
			logger.Int("users", len(drifted)),
		)
	}
	return drifted, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"startingCredits": s.startingCredits,
		"resetOpen":       s.ResetOpen(time.Now()),
	}
	if !s.started {
		return stats
	}

	if users, err := s.store.ListUsers(ctx); err == nil {
		stats["totalUsers"] = len(users)
		committed := 0
		for _, u := range users {
			if u.HasTeam() {
				committed++
			}
		}
		stats["committedTeams"] = committed
	}
	if events, err := s.store.ListEvents(ctx); err == nil {
		stats["totalEvents"] = len(events)
	}
	stats["dedupeSize"] = s.deduper.Size()
	return stats
}

// requireAdmin resolves uid and checks the admin role.
func (s *Service) requireAdmin(ctx context.Context, uid string) (model.User, error) {
	if uid == "" {
		return model.User{}, ErrNotAuthenticated
	}
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsAdmin() {
		return model.User{}, fmt.Errorf("%w: admin role required", ErrUnauthorized)
	}
	return u, nil
}
