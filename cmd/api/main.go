package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/events"
	"github.com/noah-isme/gema-tasks-api/internal/handler"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/router"
	"github.com/noah-isme/gema-tasks-api/internal/service"
)

func main() {
	cfg, err := config.Load(false)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	connector, closeDB, err := openConnector(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer closeDB()

	publisher, closeBrokers := events.FromConfig(cfg, logger)
	defer closeBrokers()

	validate := validator.New(validator.WithRequiredStructEnabled())
	taskService := service.NewTaskService(connector, validate, publisher, logger)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TaskHandler: taskHandler,
		Connector:   connector,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("app", cfg.AppName).Logger()
}

// openConnector returns a per-request connector when configured, otherwise a
// shared pool migrated at startup.
func openConnector(cfg config.Config) (database.Connector, func(), error) {
	if cfg.DatabasePerRequest {
		return database.NewPostgresPerRequestConnector(cfg.DatabaseURL), func() {}, nil
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return database.NewPooledConnector(db), closeFn, nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
