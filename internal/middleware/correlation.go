package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// HeaderCorrelationID carries the correlation identifier in requests and responses.
const HeaderCorrelationID = "X-Correlation-ID"

// CorrelationID middleware ensures every request carries a correlation identifier.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals("correlation_id", incoming)
		c.Set(HeaderCorrelationID, incoming)
		c.Request().Header.Set(HeaderCorrelationID, incoming)

		c.SetUserContext(ContextWithCorrelation(c.UserContext(), incoming))

		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// ContextWithCorrelation attaches the correlation identifier to the provided context.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(correlationID) == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, strings.TrimSpace(correlationID))
}
