package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-tasks-api/internal/utils"
)

// HeaderUserID identifies the caller for rate limiting when present.
const HeaderUserID = "X-User-Id"

// RateLimit limits each caller to max requests per window. Callers are keyed by
// the X-User-Id header, falling back to the client IP. A non-positive max
// disables limiting.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			userID := c.Get(HeaderUserID)
			if userID == "" {
				userID = c.IP()
			}
			return identifier + ":" + userID
		},
		LimitReached: func(c *fiber.Ctx) error {
			resp := utils.SendError(fiber.StatusTooManyRequests, "Too many requests")
			for name, value := range resp.Headers {
				c.Set(name, value)
			}
			return c.Status(resp.StatusCode).SendString(resp.Body)
		},
	})
}
