package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports application and database health.
func HealthCheck(cfg config.Config, connector database.Connector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Database:    databaseStatus(c, connector),
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		status := fiber.StatusOK
		if payload.Database != "ok" {
			payload.Status = "degraded"
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(payload)
	}
}

func databaseStatus(c *fiber.Ctx, connector database.Connector) string {
	if connector == nil {
		return "unconfigured"
	}

	db, release, err := connector.Acquire(c.UserContext())
	if err != nil {
		return "unavailable"
	}
	defer func() { _ = release() }()

	sqlDB, err := db.DB()
	if err != nil {
		return "unavailable"
	}
	if err := sqlDB.PingContext(c.UserContext()); err != nil {
		return "unavailable"
	}

	return "ok"
}
