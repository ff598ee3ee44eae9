// Package worker parses worker command flags and launches the worker runtime.
package worker

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/instaagents/discovery/internal/platform/cmd"
	workerserver "github.com/instaagents/discovery/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	Port         int           `env:"INSTA_AGENTS_WORKER_PORT"          envDefault:"8089"`
	DBPath       string        `env:"INSTA_AGENTS_BOT_DB_PATH"          envDefault:"data/discovery.db"`
	JournalPath  string        `env:"INSTA_AGENTS_WORKER_DB_PATH"       envDefault:"data/worker.db"`
	TickInterval time.Duration `env:"INSTA_AGENTS_WORKER_TICK_INTERVAL"`
	RollupEvery  time.Duration `env:"INSTA_AGENTS_WORKER_ROLLUP_INTERVAL" envDefault:"1h"`
	SweepEvery   time.Duration `env:"INSTA_AGENTS_WORKER_SWEEP_INTERVAL"  envDefault:"30m"`
	AbandonAfter time.Duration `env:"INSTA_AGENTS_WORKER_ABANDON_AFTER"   envDefault:"30m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The discovery SQLite database path")
	fs.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "The worker run journal SQLite database path")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "Maintenance loop tick interval")
	fs.DurationVar(&cfg.RollupEvery, "rollup-interval", cfg.RollupEvery, "Minimum gap between daily rollup runs")
	fs.DurationVar(&cfg.SweepEvery, "sweep-interval", cfg.SweepEvery, "Minimum gap between abandoned sweeps")
	fs.DurationVar(&cfg.AbandonAfter, "abandon-after", cfg.AbandonAfter, "Idle time before a conversation counts as abandoned")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		if err := workerserver.Run(ctx, workerserver.RuntimeConfig{
			Port:         cfg.Port,
			DBPath:       cfg.DBPath,
			JournalPath:  cfg.JournalPath,
			TickInterval: cfg.TickInterval,
			RollupEvery:  cfg.RollupEvery,
			SweepEvery:   cfg.SweepEvery,
			AbandonAfter: cfg.AbandonAfter,
		}); err != nil {
			return fmt.Errorf("serve worker: %w", err)
		}
		return nil
	})
}
