package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// MemStore is a mutex-guarded in-memory Store. Batches are validated and
// applied under one lock, which gives the all-or-nothing guarantee.
type MemStore struct {
	mu        sync.RWMutex
	allowed   map[string]struct{}
	users     map[string]model.User
	userOrder []string
	market    map[string]model.Character
	events    []model.Event

	notifier *userNotifier
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		allowed:  make(map[string]struct{}),
		users:    make(map[string]model.User),
		market:   make(map[string]model.Character),
		notifier: newUserNotifier(),
	}
}

// IsAllowed checks the allow-list entry keyed by email.
func (s *MemStore) IsAllowed(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[email]
	return ok, nil
}

// Allow adds an email to the allow-list.
func (s *MemStore) Allow(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[email] = struct{}{}
	return nil
}

// GetUser returns a user document.
func (s *MemStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

// CreateUser inserts a new user document.
func (s *MemStore) CreateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	if _, ok := s.users[u.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("user %s: %w", u.ID, ErrExists)
	}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	s.mu.Unlock()

	s.notifier.notify(u)
	return nil
}

// ListUsers returns every user document in insertion order.
func (s *MemStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

// GetCharacter returns a market item.
func (s *MemStore) GetCharacter(_ context.Context, id string) (model.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.market[id]
	if !ok {
		return model.Character{}, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	return ch, nil
}

// PutCharacter creates or replaces a market item.
func (s *MemStore) PutCharacter(_ context.Context, ch model.Character) (model.Character, error) {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.market[ch.ID] = ch
	return ch, nil
}

// ListCharacters returns the market ordered by name.
func (s *MemStore) ListCharacters(_ context.Context) ([]model.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Character, 0, len(s.market))
	for _, ch := range s.market {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListEvents returns the whole event log, unordered.
func (s *MemStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

// ListCharacterEvents returns the events for one character, unordered.
func (s *MemStore) ListCharacterEvents(_ context.Context, characterID string) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, ev := range s.events {
		if ev.CharacterID == characterID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Apply commits a staged batch atomically: every referenced document is
// validated before any write happens.
func (s *MemStore) Apply(_ context.Context, b *Batch) error {
	if b == nil || b.Empty() {
		return nil
	}

	s.mu.Lock()

	// Validate every target first so a failure leaves no partial effect.
	for id := range b.CharacterScores {
		if _, ok := s.market[id]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("character %s: %w", id, ErrNotFound)
		}
	}
	for _, ids := range []map[string]int{b.UserScoreDeltas, b.UserScoreSets} {
		for id := range ids {
			if _, ok := s.users[id]; !ok {
				s.mu.Unlock()
				return fmt.Errorf("user %s: %w", id, ErrNotFound)
			}
		}
	}
	for id := range b.UserPatches {
		if _, ok := s.users[id]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
	}

	for id, score := range b.CharacterScores {
		ch := s.market[id]
		ch.FantaScore = score
		s.market[id] = ch
	}
	for _, ev := range b.Events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		s.events = append(s.events, ev)
	}

	touched := make(map[string]struct{})
	for id, delta := range b.UserScoreDeltas {
		u := s.users[id]
		u.FantaScore += delta
		s.users[id] = u
		touched[id] = struct{}{}
	}
	for id, score := range b.UserScoreSets {
		u := s.users[id]
		u.FantaScore = score
		s.users[id] = u
		touched[id] = struct{}{}
	}
	for id, patch := range b.UserPatches {
		u := s.users[id]
		if patch.SetTeam {
			u.Team = patch.Team
		}
		if patch.SetCredits {
			u.Credits = patch.Credits
		}
		if patch.SetScore {
			u.FantaScore = patch.Score
		}
		s.users[id] = u
		touched[id] = struct{}{}
	}

	updated := make([]model.User, 0, len(touched))
	for id := range touched {
		updated = append(updated, s.users[id])
	}
	s.mu.Unlock()

	for _, u := range updated {
		s.notifier.notify(u)
	}
	return nil
}

// WatchUser subscribes to a user's own document.
func (s *MemStore) WatchUser(_ context.Context, id string) (<-chan model.User, func(), error) {
	s.mu.RLock()
	_, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	ch, cancel := s.notifier.subscribe(id)
	return ch, cancel, nil
}

// Close releases store resources.
func (s *MemStore) Close() error {
	s.notifier.close()
	return nil
}
