// Package cmd carries the shared startup plumbing for the discovery
// binaries: env-then-flags configuration and the telemetry lifecycle
// around a service run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/instaagents/discovery/internal/platform/config"
	"github.com/instaagents/discovery/internal/platform/otel"
)

// Service names used for telemetry and log identification.
const (
	ServiceBot    = "bot"
	ServiceMCP    = "mcp"
	ServiceWorker = "worker"
)

const otelShutdownTimeout = 5 * time.Second

// ParseConfig fills cfg from environment variables. Commands call it
// before registering flags so flag defaults reflect the environment.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags over the env-loaded defaults.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for the service, runs the loop, and
// flushes pending spans on the way out.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
