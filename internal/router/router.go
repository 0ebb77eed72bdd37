package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/handler"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TaskHandler *handler.TaskHandler
	Connector   database.Connector
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Connector))

	if deps.TaskHandler != nil {
		tasks := api.Group("/tasks", middleware.RateLimit("tasks", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.TaskHandler.Register(tasks)
	}

	app.Get("/metrics", observability.MetricsHandler())
}
