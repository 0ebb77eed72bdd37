package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogging writes one structured log line per request with its latency bucket.
func RequestLogging(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		requestLogger := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", routeTemplate(c)).
			Str("method", c.Method()).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration)).
			Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("request failed")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("request completed with client error")
		default:
			requestLogger.Info().Msg("request completed")
		}

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 25*time.Millisecond:
		return "<=25ms"
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= 500*time.Millisecond:
		return "<=500ms"
	default:
		return ">500ms"
	}
}
