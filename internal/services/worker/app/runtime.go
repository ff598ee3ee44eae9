package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	botsqlite "github.com/instaagents/discovery/internal/services/bot/storage/sqlite"
	workerdomain "github.com/instaagents/discovery/internal/services/worker/domain"
	workerstorage "github.com/instaagents/discovery/internal/services/worker/storage"
	workersqlite "github.com/instaagents/discovery/internal/services/worker/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls worker startup, dependencies, and job cadence.
type RuntimeConfig struct {
	Port int

	// DBPath points at the discovery database the maintenance jobs
	// operate on. The chat service writes the same file.
	DBPath string
	// JournalPath points at the worker's own run journal database.
	JournalPath string

	TickInterval time.Duration
	RollupEvery  time.Duration
	SweepEvery   time.Duration
	AbandonAfter time.Duration
}

const (
	defaultWorkerPort  = 8089
	defaultDiscoveryDB = "data/discovery.db"
	defaultJournalDB   = "data/worker.db"
)

// Run starts worker runtime dependencies and the maintenance loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDiscoveryDB
	}
	if strings.TrimSpace(cfg.JournalPath) == "" {
		cfg.JournalPath = defaultJournalDB
	}
	if cfg.RollupEvery <= 0 {
		cfg.RollupEvery = defaultRollupEvery
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = defaultSweepEvery
	}

	for _, path := range []string{cfg.DBPath, cfg.JournalPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create worker storage dir: %w", err)
			}
		}
	}

	discoveryStore, err := botsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open discovery sqlite store: %w", err)
	}
	defer func() {
		if closeErr := discoveryStore.Close(); closeErr != nil {
			log.Printf("close discovery sqlite store: %v", closeErr)
		}
	}()

	journalStore, err := workersqlite.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open worker journal store: %w", err)
	}
	defer func() {
		if closeErr := journalStore.Close(); closeErr != nil {
			log.Printf("close worker journal store: %v", closeErr)
		}
	}()

	workerLoop := New(
		[]ScheduledJob{
			{Job: workerdomain.NewRollupJob(discoveryStore), Every: cfg.RollupEvery},
			{Job: workerdomain.NewSweepJob(discoveryStore, cfg.AbandonAfter), Every: cfg.SweepEvery},
		},
		newStoreOutcomeRecorder(journalStore),
		Config{TickInterval: cfg.TickInterval},
		nil,
	)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("worker.maintenance", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker server listening at %v", listener.Addr())
	return workerLoop.Run(ctx)
}

type storeOutcomeRecorder struct {
	store workerstorage.RunStore
}

func newStoreOutcomeRecorder(store workerstorage.RunStore) *storeOutcomeRecorder {
	return &storeOutcomeRecorder{store: store}
}

// RecordOutcome journals one job run. A recorder without a store drops
// outcomes instead of failing the loop.
func (r *storeOutcomeRecorder) RecordOutcome(ctx context.Context, outcome Outcome) error {
	if r == nil || r.store == nil {
		return nil
	}
	detail := ""
	if outcome.Err != nil {
		detail = outcome.Err.Error()
	}
	return r.store.RecordRun(ctx, workerstorage.RunRecord{
		Job:          outcome.Job,
		Outcome:      canonicalOutcomeValue(outcome.Succeeded),
		RowsAffected: outcome.RowsAffected,
		Detail:       detail,
		RanAt:        outcome.RanAt,
	})
}

func canonicalOutcomeValue(succeeded bool) string {
	if succeeded {
		return outcomeSucceeded
	}
	return outcomeFailed
}
