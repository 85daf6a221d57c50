package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/superres/internal/adapters/http"
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
	"github.com/samirrijal/superres/internal/pkg/metrics"
	"github.com/samirrijal/superres/internal/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("superres-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, "superres-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	deps := &http.Dependencies{DB: db, Version: version}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
			deps.Cache = c
		}
	}

	// NATS: publisher for job events, subscriber for the WebSocket relay
	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer p.Close()
			publisher = p
			deps.NATS = p

			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
			if err != nil {
				slog.Warn("nats ws relay unavailable", "error", err)
			} else {
				defer sub.Close()
				deps.Events = sub
			}
		}
	}

	// Outputs and the inference capability
	store := artifacts.NewOSStore()
	if _, err := store.EnsureDirectory(cfg.Output.Root); err != nil {
		log.Fatalf("output root: %v", err)
	}

	var resolver interface {
		ports.SuperResolver
		http.Pinger
	}
	switch cfg.Inference.Mode {
	case config.ModeFixture:
		resolver = inference.NewFixture(store.Fs(), cfg.Inference.FixtureSize, time.Second)
	default:
		resolver = inference.NewS2DR3(cfg.Inference.Python, cfg.Inference.Timeout())
	}
	deps.Inference = resolver

	processing := usecases.NewProcessingService(
		postgres.NewJobRepo(db), store, resolver, publisher, cache, cfg.Output.Root,
	)
	deps.Processing = processing
	deps.Artifacts = usecases.NewArtifactService(processing, store)

	// Job execution: Temporal workers when enabled, in-process otherwise
	var inline *usecases.InlineRunner
	if cfg.Temporal.Enabled {
		tc, err := temporaladapter.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			log.Fatalf("temporal: %v", err)
		}
		defer tc.Close()
		runner := temporaladapter.NewRunner(tc, cfg.Temporal.TaskQueue, cfg.Inference.Timeout())
		processing.SetRunner(runner)
		deps.Runner = runner
	} else {
		inline = usecases.NewInlineRunner(processing, cfg.Inference.MaxConcurrent, cfg.Inference.Timeout())
		processing.SetRunner(inline)
	}

	slog.Info("pipeline configured",
		"inference_mode", cfg.Inference.Mode,
		"output_root", cfg.Output.Root,
		"temporal", cfg.Temporal.Enabled,
	)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Sentinel-2 Super-Resolution",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	if inline != nil {
		slog.Info("waiting for running jobs")
		inline.Wait()
	}

	slog.Info("server stopped")
}

// reportPoolStats copies pgxpool statistics into the Prometheus gauges.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		case <-ctx.Done():
			return
		}
	}
}
