package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")

	errInvalidLimit = errors.New("limit must be a positive integer")
)
