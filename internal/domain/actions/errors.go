package actions

import "errors"

// Sentinel kinds for action catalog errors.
var (
	ErrUnknownAction = errors.New("unknown scoring action")
)
