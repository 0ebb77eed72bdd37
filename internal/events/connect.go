package events

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
)

const brokerConnectTimeout = 5 * time.Second

// FromConfig connects the brokers named in cfg and returns a publisher plus a close function.
// An unreachable broker is logged and skipped; with none available the publisher is a no-op.
func FromConfig(cfg config.Config, logger zerolog.Logger) (Publisher, func()) {
	var (
		redisClient *redis.Client
		natsConn    *nats.Conn
	)

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), brokerConnectTimeout)
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, events will not be published over redis")
		} else {
			redisClient = client
		}
	}

	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events will not be published over nats")
		} else {
			natsConn = conn
		}
	}

	if redisClient == nil && natsConn == nil {
		return NopPublisher{}, func() {}
	}

	closeFn := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if natsConn != nil {
			natsConn.Close()
		}
	}
	return NewBrokerPublisher(redisClient, natsConn, cfg.EventsChannel, logger), closeFn
}
