package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/superres/internal/adapters/inference"
	natsadapter "github.com/samirrijal/superres/internal/adapters/nats"
	"github.com/samirrijal/superres/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/superres/internal/adapters/temporal"
	"github.com/samirrijal/superres/internal/adapters/valkey"
	"github.com/samirrijal/superres/internal/core/ports"
	"github.com/samirrijal/superres/internal/core/usecases"
	"github.com/samirrijal/superres/internal/pkg/artifacts"
	"github.com/samirrijal/superres/internal/pkg/config"
	"github.com/samirrijal/superres/internal/pkg/logging"
	"github.com/samirrijal/superres/internal/pkg/telemetry"
	"github.com/samirrijal/superres/internal/workflows"
)

func main() {
	cfg, err := config.Load("superres-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, "superres-worker")

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
		}
	}

	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	store := artifacts.NewOSStore()
	var resolver ports.SuperResolver
	switch cfg.Inference.Mode {
	case config.ModeFixture:
		resolver = inference.NewFixture(store.Fs(), cfg.Inference.FixtureSize, 0)
	default:
		s2dr3 := inference.NewS2DR3(cfg.Inference.Python, cfg.Inference.Timeout())
		if err := s2dr3.Ping(ctx); err != nil {
			// Jobs will fail as capability_unavailable; keep serving so they are marked.
			slog.Warn("s2dr3 not importable", "error", err)
		}
		resolver = s2dr3
	}

	processing := usecases.NewProcessingService(
		postgres.NewJobRepo(db), store, resolver, publisher, cache, cfg.Output.Root,
	)

	c, err := temporaladapter.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer c.Close()

	// Inference dominates activity time, so its concurrency bounds the worker.
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: max(cfg.Inference.MaxConcurrent, 1),
	})

	w.RegisterWorkflow(workflows.SuperResolutionWorkflow)
	w.RegisterActivity(&workflows.SuperResolutionActivities{Processing: processing})

	slog.Info("superres worker started",
		"task_queue", cfg.Temporal.TaskQueue,
		"inference_mode", cfg.Inference.Mode,
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
