package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Mode is the deployment mode of a service.
type Mode string

const (
	// ModeDevelopment relaxes cookie and transport policies for local work.
	ModeDevelopment Mode = "dev"
	// ModeProduction enables strict cookie and transport policies.
	ModeProduction Mode = "prod"
)

// ParseMode normalises a raw mode value. An empty value is development;
// anything unrecognised is rejected.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "dev", "development":
		return ModeDevelopment, nil
	case "prod", "production":
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// UnmarshalText lets env and flag parsing validate modes.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IsProduction reports whether m is the production mode.
func (m Mode) IsProduction() bool {
	return m == ModeProduction
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// TrimCSV splits a comma-separated value and drops empty entries.
func TrimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
