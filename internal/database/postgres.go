package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the tables used by the tasks API.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Module{}, &models.User{}, &models.Task{}, &models.CompletedTask{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
