package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the tasks service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	LogLevel           string
	DatabaseURL        string
	DatabasePerRequest bool
	RedisURL           string
	NATSURL            string
	EventsChannel      string
	RateLimitMax       int
	RateLimitWindow    time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
// perRequestDefault decides whether a fresh database connection is opened for every request
// when TASKS_DATABASE_PER_REQUEST is not set.
func Load(perRequestDefault bool) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TASKS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindEnv("database.url", "TASKS_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind database url: %w", err)
	}

	v.SetDefault("app.name", "Tasks API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.per_request", perRequestDefault)
	v.SetDefault("events.channel", "tasks")
	v.SetDefault("rate_limit.max", 0)
	v.SetDefault("rate_limit.window", time.Minute)

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		DatabaseURL:        strings.TrimSpace(v.GetString("database.url")),
		DatabasePerRequest: v.GetBool("database.per_request"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventsChannel:      strings.TrimSpace(v.GetString("events.channel")),
		RateLimitMax:       v.GetInt("rate_limit.max"),
		RateLimitWindow:    v.GetDuration("rate_limit.window"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	return cfg, nil
}
