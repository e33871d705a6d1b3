package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"GATEHOUSE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("GATEHOUSE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":           ModeDevelopment,
		"dev":        ModeDevelopment,
		"PROD":       ModeProduction,
		"production": ModeProduction,
	}
	for raw, want := range tests {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v, want %q", raw, got, err, want)
		}
	}
	for _, raw := range []string{"prd", "staging"} {
		if _, err := ParseMode(raw); err == nil {
			t.Fatalf("expected ParseMode(%q) to fail", raw)
		}
	}
	if !ModeProduction.IsProduction() || ModeDevelopment.IsProduction() {
		t.Fatal("unexpected IsProduction result")
	}
}

type modeConfig struct {
	Mode Mode `env:"GATEHOUSE_TEST_MODE" envDefault:"dev"`
}

func TestParseEnvRejectsUnknownMode(t *testing.T) {
	t.Setenv("GATEHOUSE_TEST_MODE", "prd")
	var cfg modeConfig
	if err := ParseEnv(&cfg); err == nil {
		t.Fatal("expected unknown mode to fail")
	}

	t.Setenv("GATEHOUSE_TEST_MODE", "production")
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Mode != ModeProduction {
		t.Fatalf("expected production mode, got %q", cfg.Mode)
	}
}

func TestTrimCSV(t *testing.T) {
	got := TrimCSV([]string{" read:user , user:email", "", "openid"})
	want := []string{"read:user", "user:email", "openid"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
