package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/lostfound-go-api/internal/config"
	"github.com/noah-isme/lostfound-go-api/internal/handler"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReportHandler       *handler.ReportHandler
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	StorageHandler      *handler.StorageHandler
	HealthProbes        map[string]handler.HealthProbe
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(api.Group("/reports", jwtMiddleware))
	}

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}

	if deps.StorageHandler != nil {
		deps.StorageHandler.Register(api.Group("/storage", jwtMiddleware))
	}
}
