// Command invoke handles a single gateway event: it reads the event JSON from
// stdin and writes the response JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/events"
	"github.com/noah-isme/gema-tasks-api/internal/gateway"
	"github.com/noah-isme/gema-tasks-api/internal/handler"
	"github.com/noah-isme/gema-tasks-api/internal/service"
)

func main() {
	cfg, err := config.Load(true)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	// stdout carries the response, so logs go to stderr.
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("app", cfg.AppName).Logger()

	var connector database.Connector
	if cfg.DatabasePerRequest {
		connector = database.NewPostgresPerRequestConnector(cfg.DatabaseURL)
	} else {
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		connector = database.NewPooledConnector(db)
	}

	var event gateway.Event
	if err := json.NewDecoder(os.Stdin).Decode(&event); err != nil {
		log.Fatalf("failed to decode event: %v", err)
	}

	publisher, closeBrokers := events.FromConfig(cfg, logger)
	defer closeBrokers()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New(validator.WithRequiredStructEnabled())
	taskService := service.NewTaskService(connector, validate, publisher, logger)
	resp := handler.NewTaskHandler(taskService, logger).Handle(ctx, event)

	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		log.Fatalf("failed to encode response: %v", err)
	}
}
