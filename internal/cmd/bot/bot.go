// Package bot parses discovery API command flags and launches the server.
package bot

import (
	"context"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/instaagents/discovery/internal/platform/cmd"
	"github.com/instaagents/discovery/internal/services/bot/adminauth"
	server "github.com/instaagents/discovery/internal/services/bot/app"
)

// Config holds bot command configuration.
type Config struct {
	HTTPAddr        string `env:"INSTA_AGENTS_BOT_HTTP_ADDR" envDefault:":8085"`
	DBPath          string `env:"INSTA_AGENTS_BOT_DB_PATH"   envDefault:"data/discovery.db"`
	Provider        string `env:"INSTA_AGENTS_LLM_PROVIDER"  envDefault:"anthropic"`
	ProviderAPIKey  string `env:"INSTA_AGENTS_LLM_API_KEY"`
	ProviderModel   string `env:"INSTA_AGENTS_LLM_MODEL"`
	ProviderBaseURL string `env:"INSTA_AGENTS_LLM_BASE_URL"`
	CalendlyURL     string `env:"INSTA_AGENTS_CALENDLY_URL"  envDefault:"https://calendly.com/instaagents/demo"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "discovery API HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "conversation SQLite database path")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "model provider: anthropic or openai")
	fs.StringVar(&cfg.ProviderModel, "model", cfg.ProviderModel, "model override for the provider")
	fs.StringVar(&cfg.CalendlyURL, "calendly-url", cfg.CalendlyURL, "demo booking link offered at the end of discovery")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the discovery server and serves until ctx is canceled.
//
// The admin endpoints come up only when the token verification variables are
// set; otherwise the server runs with them disabled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBot, func(context.Context) error {
		serverCfg := server.Config{
			HTTPAddr:        cfg.HTTPAddr,
			DatabasePath:    cfg.DBPath,
			Provider:        cfg.Provider,
			ProviderAPIKey:  cfg.ProviderAPIKey,
			ProviderModel:   cfg.ProviderModel,
			ProviderBaseURL: cfg.ProviderBaseURL,
			CalendlyURL:     cfg.CalendlyURL,
		}
		if adminCfg, err := adminauth.LoadConfigFromEnv(nil); err != nil {
			log.Printf("admin endpoints disabled: %v", err)
		} else {
			serverCfg.AdminAuth = &adminCfg
		}
		if err := server.Run(ctx, serverCfg); err != nil {
			return fmt.Errorf("serve bot: %w", err)
		}
		return nil
	})
}
