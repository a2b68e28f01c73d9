package auth

import "errors"

// Sentinel kinds for auth errors.
var (
	ErrInvalidToken = errors.New("invalid or unknown token")
)
