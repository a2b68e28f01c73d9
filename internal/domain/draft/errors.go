package draft

import "errors"

// Sentinel kinds for draft errors.
var (
	ErrCapacityExceeded = errors.New("category selection cap exceeded")
	ErrOverBudget       = errors.New("draft cost exceeds available credits")
	ErrAlreadyCommitted = errors.New("team already committed")
)
