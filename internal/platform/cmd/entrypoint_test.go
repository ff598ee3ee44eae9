package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Addr string `env:"CMD_TEST_ADDR" envDefault:"127.0.0.1:8085"`
	DB   string `env:"CMD_TEST_DB" envDefault:"data/test.db"`
}

func TestParseConfigThenArgsLayersEnvUnderFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDR", "env:9000")
	t.Setenv("CMD_TEST_DB", "env.db")

	var cfg testConfig
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "database path")
	if err := ParseArgs(fs, []string{"-addr", "flag:9001"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if cfg.Addr != "flag:9001" {
		t.Fatalf("addr = %q, want the flag to win", cfg.Addr)
	}
	if cfg.DB != "env.db" {
		t.Fatalf("db = %q, want the env value to survive", cfg.DB)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected nil parser error")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceBot, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryRunsAndPropagatesError(t *testing.T) {
	ran := false
	if err := RunWithTelemetry(context.Background(), ServiceWorker, func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("run with telemetry: %v", err)
	}
	if !ran {
		t.Fatal("run function never executed")
	}

	wantErr := errors.New("serve failed")
	err := RunWithTelemetry(context.Background(), ServiceWorker, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the run error", err)
	}
}
