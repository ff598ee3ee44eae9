// Package mcp parses MCP command flags and launches the protocol adapter.
package mcp

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/instaagents/discovery/internal/platform/cmd"
	mcpserver "github.com/instaagents/discovery/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	APIBaseURL string `env:"INSTA_AGENTS_API_URL"       envDefault:"http://localhost:8085"`
	AdminToken string `env:"INSTA_AGENTS_ADMIN_TOKEN"`
	Transport  string `env:"INSTA_AGENTS_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "discovery api base url")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport type: stdio")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		if err := mcpserver.Run(ctx, mcpserver.Config{
			APIBaseURL: cfg.APIBaseURL,
			AdminToken: cfg.AdminToken,
			Transport:  cfg.Transport,
		}); err != nil {
			return fmt.Errorf("serve mcp: %w", err)
		}
		return nil
	})
}
