// Package repository defines the document store interface backing the game:
// the allow-list, user rosters, the market catalog and the append-only event
// log, with an atomic multi-document batch write and a per-user subscription.
package repository

import (
	"context"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// UserPatch is a staged field-level update of a user document. Fields are
// applied only when their Set flag is on; SetTeam with a nil Team clears it.
type UserPatch struct {
	SetTeam bool
	Team    model.Team

	SetCredits bool
	Credits    int

	SetScore bool
	Score    int
}

// Batch stages a multi-document write. Apply commits every staged write
// all-or-nothing: on failure no partial effect is observable.
type Batch struct {
	// CharacterScores maps character id to its new cumulative score.
	CharacterScores map[string]int

	// Events are appended to the event log. Empty ids are assigned on
	// commit.
	Events []model.Event

	// UserScoreDeltas maps user id to an increment of its total.
	UserScoreDeltas map[string]int

	// UserScoreSets maps user id to an absolute total (bulk recompute).
	UserScoreSets map[string]int

	// UserPatches maps user id to a field-level update (team commit,
	// reset).
	UserPatches map[string]UserPatch
}

// NewBatch returns an empty staged batch.
func NewBatch() *Batch {
	return &Batch{
		CharacterScores: make(map[string]int),
		UserScoreDeltas: make(map[string]int),
		UserScoreSets:   make(map[string]int),
		UserPatches:     make(map[string]UserPatch),
	}
}

// Empty reports whether nothing is staged.
func (b *Batch) Empty() bool {
	return len(b.CharacterScores) == 0 && len(b.Events) == 0 &&
		len(b.UserScoreDeltas) == 0 && len(b.UserScoreSets) == 0 &&
		len(b.UserPatches) == 0
}

// Store provides access to the persisted game state.
type Store interface {
	// IsAllowed checks the allow-list entry keyed by email.
	IsAllowed(ctx context.Context, email string) (bool, error)
	// Allow adds an email to the allow-list. Idempotent.
	Allow(ctx context.Context, email string) error

	// GetUser returns a user document. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (model.User, error)
	// CreateUser inserts a new user document. Returns ErrExists if the id
	// is already taken.
	CreateUser(ctx context.Context, u model.User) error
	// ListUsers returns every user document in stable insertion order.
	ListUsers(ctx context.Context) ([]model.User, error)

	// GetCharacter returns a market item. Returns ErrNotFound if absent.
	GetCharacter(ctx context.Context, id string) (model.Character, error)
	// PutCharacter creates or replaces a market item. Empty ids are
	// assigned on write.
	PutCharacter(ctx context.Context, ch model.Character) (model.Character, error)
	// ListCharacters returns the market ordered by name.
	ListCharacters(ctx context.Context) ([]model.Character, error)

	// ListEvents returns the whole event log, unordered.
	ListEvents(ctx context.Context) ([]model.Event, error)
	// ListCharacterEvents returns the events for one character, unordered.
	ListCharacterEvents(ctx context.Context, characterID string) ([]model.Event, error)

	// Apply commits a staged batch atomically.
	Apply(ctx context.Context, b *Batch) error

	// WatchUser subscribes to a user's own document. The channel delivers
	// the latest persisted state at least once after every write to that
	// document. The returned cancel func releases the subscription.
	WatchUser(ctx context.Context, id string) (<-chan model.User, func(), error)

	// Close releases store resources.
	Close() error
}
