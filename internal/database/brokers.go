package database

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis configures a Redis client using the supplied URL and verifies it answers.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}

// ConnectNATS dials the NATS server at url, naming the connection after the service.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url must not be empty")
	}

	conn, err := nats.Connect(url, nats.Name(name), nats.Timeout(3*time.Second))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}
