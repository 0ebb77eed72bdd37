package middleware

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
}

// Register attaches the common middlewares used across the API. CORS headers are produced
// by the task handler itself so that OPTIONS requests reach it.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(RequestLogging(requestLogger))
}
