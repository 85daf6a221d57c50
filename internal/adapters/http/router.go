package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/superres/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers the control panel, REST, GraphQL and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/", IndexHandler())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/coordinates/convert", ConvertCoordinatesHandler())
	v1.Get("/coordinates/preview", PreviewHandler())

	v1.Post("/jobs", timeout.NewWithContext(SubmitJobHandler(deps), requestTimeout))
	v1.Get("/jobs", timeout.NewWithContext(ListJobsHandler(deps), requestTimeout))
	v1.Get("/jobs/nearby", timeout.NewWithContext(NearbyJobsHandler(deps), requestTimeout))
	v1.Get("/jobs/:id", timeout.NewWithContext(GetJobHandler(deps), requestTimeout))
	v1.Get("/jobs/:id/artifacts", timeout.NewWithContext(ListArtifactsHandler(deps), requestTimeout))
	v1.Delete("/jobs/:id/artifacts", timeout.NewWithContext(ClearArtifactsHandler(deps), requestTimeout))
	v1.Get("/jobs/:id/artifacts/:name", timeout.NewWithContext(DownloadArtifactHandler(deps), requestTimeout))
	v1.Get("/jobs/:id/artifacts/:name/preview", timeout.NewWithContext(PreviewArtifactHandler(deps), requestTimeout))
	// Bundling every raster can take a while on large scenes.
	v1.Get("/jobs/:id/archive", timeout.NewWithContext(ArchiveHandler(deps), 2*time.Minute))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	if deps.Events == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.Events)))
}
