// Package draft implements the client-local draft builder: an in-memory
// selection staged before commit, with per-category quantity caps and a
// total budget cap.
package draft

import (
	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// Per-category selection caps.
const (
	CapCircolo = 2
	CapEquipe  = 2
	CapOspite  = 1
)

// Cap returns the selection cap for a category. Unknown categories cap at 0,
// so toggles against them are always rejected.
func Cap(cat model.Category) int {
	switch cat {
	case model.CategoryCircolo:
		return CapCircolo
	case model.CategoryEquipe:
		return CapEquipe
	case model.CategoryOspite:
		return CapOspite
	default:
		return 0
	}
}

// Builder holds a single session's staged selection. It is not safe for
// concurrent use and is never persisted; it resets to empty on reload or
// after a successful commit.
type Builder struct {
	committed bool
	selected  map[model.Category][]model.Character
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithCommitted marks the builder as belonging to a user who already has a
// persisted team; every toggle is then rejected.
func WithCommitted(committed bool) Option {
	return func(b *Builder) {
		b.committed = committed
	}
}

// NewBuilder constructs an empty draft builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		selected: make(map[model.Category][]model.Character),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Toggle stages ch if absent and removes it if present. It fails with
// ErrAlreadyCommitted when the user already has a team, and with
// ErrCapacityExceeded when the character's category is at its cap; in both
// cases the draft is left unchanged.
func (b *Builder) Toggle(ch model.Character) error {
	if b.committed {
		return ErrAlreadyCommitted
	}

	list := b.selected[ch.Category]
	for i, cur := range list {
		if cur.ID == ch.ID {
			b.selected[ch.Category] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}

	if len(list) >= Cap(ch.Category) {
		return ErrCapacityExceeded
	}
	b.selected[ch.Category] = append(list, ch)
	return nil
}

// Contains reports whether the character is currently staged.
func (b *Builder) Contains(characterID string) bool {
	for _, list := range b.selected {
		for _, ch := range list {
			if ch.ID == characterID {
				return true
			}
		}
	}
	return false
}

// TotalCost is the sum of staged item prices.
func (b *Builder) TotalCost() int {
	total := 0
	for _, list := range b.selected {
		for _, ch := range list {
			total += ch.Price
		}
	}
	return total
}

// TotalCount is the number of staged items.
func (b *Builder) TotalCount() int {
	n := 0
	for _, list := range b.selected {
		n += len(list)
	}
	return n
}

// OverBudget reports whether the staged cost exceeds the given credits.
// Commit must be disabled while this holds.
func (b *Builder) OverBudget(credits int) bool {
	return b.TotalCost() > credits
}

// Team materializes the staged selection as a persistable team. Member ids
// are always carried so later score propagation can match by durable key.
func (b *Builder) Team() model.Team {
	team := make(model.Team)
	for _, cat := range model.Categories() {
		members := make([]model.TeamMember, 0, len(b.selected[cat]))
		for _, ch := range b.selected[cat] {
			members = append(members, model.TeamMember{ID: ch.ID, Name: ch.Name})
		}
		team[cat] = members
	}
	return team
}

// Reset clears the staged selection.
func (b *Builder) Reset() {
	b.selected = make(map[model.Category][]model.Character)
}

// MarkCommitted flags the builder after a successful commit so further
// toggles are rejected.
func (b *Builder) MarkCommitted() {
	b.committed = true
	b.Reset()
}
