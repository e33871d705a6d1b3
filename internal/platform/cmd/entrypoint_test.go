package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"dev"`
}

func TestParseConfigFromArgsReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "configarg:9000")
	t.Setenv("CMD_TEST_MODE", "prod")

	cfg := testConfig{}
	fs := flag.NewFlagSet("configargs", flag.ContinueOnError)
	fs.Func("address", "address", func(v string) error {
		cfg.Address = v
		return nil
	})
	if err := ParseConfigFromArgs(&cfg, fs, []string{"-address", "flag:9002"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfg.Address != "flag:9002" {
		t.Fatalf("expected parsed flag address, got %q", cfg.Address)
	}
	if cfg.Mode != "prod" {
		t.Fatalf("expected env mode, got %q", cfg.Mode)
	}
}

func TestParseConfigFromArgsRejectsNilInputs(t *testing.T) {
	if err := ParseConfigFromArgs[testConfig](nil, flag.NewFlagSet("x", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected nil config error")
	}
	if err := ParseConfigFromArgs(&testConfig{}, nil, nil); err == nil {
		t.Fatal("expected nil parser error")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceAuth, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("GATEHOUSE_OTEL_ENDPOINT", "")
	want := errors.New("boom")
	got := RunWithTelemetry(context.Background(), ServiceAuth, func(context.Context) error { return want })
	if !errors.Is(got, want) {
		t.Fatalf("expected run error, got %v", got)
	}
}
