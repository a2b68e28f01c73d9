package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNotAuthenticated means no principal is bound to the operation.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnauthorized means the principal is not permitted: missing from
	// the allow-list, or lacking the admin role. The session must not
	// proceed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrResetClosed means the reset deadline has passed.
	ErrResetClosed = errors.New("team reset no longer available")
	// ErrCostMismatch means the submitted cost diverges from the staged
	// draft, usually a stale client.
	ErrCostMismatch = errors.New("draft cost mismatch")
	// ErrNotStarted means the service has not been started.
	ErrNotStarted = errors.New("service not started")
)
