// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite database file. Empty selects the
	// in-memory store (useful for local runs and tests).
	DBPath string `koanf:"db_path"`

	// StartingCredits is the budget granted to a newly provisioned user
	// and restored by a team reset.
	StartingCredits int `koanf:"starting_credits"`

	// ResetDeadline is the RFC3339 instant after which team resets are
	// refused regardless of team state.
	ResetDeadline string `koanf:"reset_deadline"`

	// AdminEventLimit caps the admin-facing event log.
	AdminEventLimit int `koanf:"admin_event_limit"`

	// PublicEventLimit caps the public event log.
	PublicEventLimit int `koanf:"public_event_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DedupeSize bounds the scoring request-id dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DriftCheckMinutes sets the interval of the scheduled drift audit.
	// Zero disables the job.
	DriftCheckMinutes int `koanf:"drift_check_minutes"`

	// Tokens maps bearer tokens to principals for the static verifier,
	// formatted "uid:email:displayName". A real deployment replaces this
	// with an identity-provider backed verifier.
	Tokens map[string]string `koanf:"tokens"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBPath:              "",
		StartingCredits:     100,
		ResetDeadline:       "2026-02-15T00:00:00Z",
		AdminEventLimit:     20,
		PublicEventLimit:    30,
		MaxLeaderboardLimit: 100,
		DedupeSize:          10_000,
		DriftCheckMinutes:   30,
		Tokens:              map[string]string{},
	}
}

// ResetDeadlineTime parses the configured reset deadline.
func (c *Config) ResetDeadlineTime() (time.Time, error) {
	return time.Parse(time.RFC3339, c.ResetDeadline)
}
