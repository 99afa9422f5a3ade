package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/stream-access/internal/api/http/handlers"
	"github.com/spec-kit/stream-access/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Metrics       *handlers.MetricsHandler
	Access        *handlers.AccessHandler
	Sessions      *handlers.SessionsHandler
	Ingest        *handlers.IngestHandler
	IngestKeyHash string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	v1 := app.Group("/v1")

	v1.Post("/sessions", cfg.Sessions.Issue)
	v1.Delete("/sessions/:userID", cfg.Sessions.Revoke)

	v1.Get("/content/:contentID/access", cfg.Access.Check)

	ingest := v1.Group("", auth.RequireIngestKey(cfg.IngestKeyHash))
	ingest.Post("/entitlements/events", cfg.Ingest.ApplyEntitlementEvent)
	ingest.Post("/catalog/content", cfg.Ingest.PublishContent)
}
