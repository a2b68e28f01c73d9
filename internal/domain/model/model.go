// Package model contains domain models passed between layers.
package model

import "time"

// Role describes what a user may do.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Category classifies draftable characters.
type Category string

const (
	CategoryCircolo Category = "Circolo"
	CategoryEquipe  Category = "Equipe"
	CategoryOspite  Category = "Ospite"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryCircolo, CategoryEquipe, CategoryOspite}
}

// Principal is the identity supplied by the external auth provider.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Character is a draftable market item. FantaScore is the cumulative point
// total mutated only by the scoring engine.
type Character struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Price      int      `json:"price"`
	FantaScore int      `json:"fanta_score"`
}

// TeamMember is a reference to a drafted character. Historical rows may have
// an empty ID and are matched by name as a fallback.
type TeamMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team maps each category to its drafted members. A nil Team on a User means
// no team has been committed yet.
type Team map[Category][]TeamMember

// Members flattens all categories into one sequence.
func (t Team) Members() []TeamMember {
	var out []TeamMember
	for _, cat := range Categories() {
		out = append(out, t[cat]...)
	}
	return out
}

// Contains reports whether the team references the character, matching by id
// first and falling back to name for rows that predate durable ids.
func (t Team) Contains(characterID, characterName string) bool {
	for _, m := range t.Members() {
		if m.ID != "" && m.ID == characterID {
			return true
		}
		if m.Name != "" && m.Name == characterName {
			return true
		}
	}
	return false
}

// User is the per-user roster document. Team is nil until committed.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Credits     int       `json:"credits"`
	Role        Role      `json:"role"`
	Team        Team      `json:"team,omitempty"`
	FantaScore  int       `json:"fanta_score"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasTeam reports whether the user has committed a team.
func (u User) HasTeam() bool { return u.Team != nil }

// IsAdmin reports whether the user may use the scoring endpoints.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Event is an immutable log record of a scoring action applied to a character.
type Event struct {
	ID            string    `json:"id"`
	CharacterID   string    `json:"character_id"`
	CharacterName string    `json:"character_name"`
	ActionKey     string    `json:"action_key"`
	ActionLabel   string    `json:"action_label"`
	Points        int       `json:"points"`
	Timestamp     time.Time `json:"timestamp"`
}
