package handler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/middleware"
)

func requestLogger(base zerolog.Logger, ctx context.Context) *zerolog.Logger {
	logger := base
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		logger = base.With().Str("correlation_id", correlation).Logger()
	}
	return &logger
}
