// Package rank holds the read-only projections displayed to users: the
// leaderboard, per-character score listings and event history. All functions
// are pure; callers pass in rows read from the store.
package rank

import (
	"sort"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// topTierRanks marks how many leading ranks are highlighted.
const topTierRanks = 3

// Row is one leaderboard line.
type Row struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Score       int    `json:"score"`
	TopTier     bool   `json:"top_tier"`
	IsViewer    bool   `json:"is_viewer"`
	Team        model.Team `json:"team,omitempty"`
}

// Standings sorts users by score descending with a stable tie-break on the
// incoming order, annotates the top three ranks and flags the viewer's row.
func Standings(users []model.User, viewerID string) []Row {
	sorted := make([]model.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FantaScore > sorted[j].FantaScore
	})

	rows := make([]Row, len(sorted))
	for i, u := range sorted {
		rows[i] = Row{
			Rank:        i + 1,
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			PhotoURL:    u.PhotoURL,
			Score:       u.FantaScore,
			TopTier:     i < topTierRanks,
			IsViewer:    viewerID != "" && u.ID == viewerID,
			Team:        u.Team,
		}
	}
	return rows
}

// SortEvents orders events by timestamp descending and caps the result to
// limit entries (limit <= 0 means no cap). Sorting happens here because the
// underlying store query is unordered.
func SortEvents(events []model.Event, limit int) []model.Event {
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// ScoresByCategory groups characters per category, each group ordered by
// cumulative score descending with a stable tie-break.
func ScoresByCategory(chars []model.Character) map[model.Category][]model.Character {
	out := make(map[model.Category][]model.Character)
	for _, ch := range chars {
		out[ch.Category] = append(out[ch.Category], ch)
	}
	for cat := range out {
		list := out[cat]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].FantaScore > list[j].FantaScore
		})
		out[cat] = list
	}
	return out
}
