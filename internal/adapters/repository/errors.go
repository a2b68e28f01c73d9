package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound    = errors.New("document not found")
	ErrExists      = errors.New("document already exists")
	ErrPersistence = errors.New("persistence failure")
)
