package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FANTA_CONFIG is set
//  3. env (prefix FANTA_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FANTA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: FANTA_ADDR, FANTA_RESET_DEADLINE, ...
	// Map env keys like FANTA_RESET_DEADLINE -> reset_deadline (flat keys).
	envProvider := env.Provider("FANTA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "fanta_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.StartingCredits < 0 {
		return fmt.Errorf("%w: starting_credits must not be negative", ErrInvalidConfig)
	}
	if _, err := c.ResetDeadlineTime(); err != nil {
		return fmt.Errorf("%w: reset_deadline: %w", ErrInvalidConfig, err)
	}
	if c.AdminEventLimit < 1 || c.PublicEventLimit < 1 {
		return fmt.Errorf("%w: event limits must be positive", ErrInvalidConfig)
	}
	return nil
}
