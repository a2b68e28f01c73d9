// Package actions holds the fixed catalog of scoring actions an admin can
// record against a character.
package actions

// Action describes a scoring action: a display label and a signed point delta.
type Action struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// catalog is fixed configuration; per-use data lives only in the event log.
var catalog = map[string]Action{
	"canta":   {Key: "canta", Label: "🎤 Canta", Points: 15},
	"parla":   {Key: "parla", Label: "🗣️ Parla", Points: 5},
	"saluta":  {Key: "saluta", Label: "👋 Saluta", Points: 2},
	"battuta": {Key: "battuta", Label: "🤣 Battuta", Points: 8},
	"errore":  {Key: "errore", Label: "😱 Errore", Points: -10},
	"ospite":  {Key: "ospite", Label: "🌟 Ospite", Points: 20},
}

// keyOrder keeps listings stable for display.
var keyOrder = []string{"canta", "parla", "saluta", "battuta", "errore", "ospite"}

// Lookup returns the action for key, or ErrUnknownAction.
func Lookup(key string) (Action, error) {
	a, ok := catalog[key]
	if !ok {
		return Action{}, ErrUnknownAction
	}
	return a, nil
}

// All returns every action in stable display order.
func All() []Action {
	out := make([]Action, 0, len(keyOrder))
	for _, k := range keyOrder {
		out = append(out, catalog[k])
	}
	return out
}
