package database

import (
	"context"
	"fmt"
	"io"

	"gorm.io/gorm"
)

// Release returns a handle obtained from a Connector.
type Release func() error

// Connector hands out a database handle scoped to a single request.
type Connector interface {
	Acquire(ctx context.Context) (*gorm.DB, Release, error)
}

// OpenFunc opens a new database handle.
type OpenFunc func() (*gorm.DB, error)

// PerRequestConnector opens a dedicated connection on every Acquire and closes it on release.
type PerRequestConnector struct {
	open OpenFunc
}

// NewPerRequestConnector builds a connector around an arbitrary open function.
func NewPerRequestConnector(open OpenFunc) *PerRequestConnector {
	return &PerRequestConnector{open: open}
}

// NewPostgresPerRequestConnector opens a fresh PostgreSQL connection for each request.
func NewPostgresPerRequestConnector(dsn string) *PerRequestConnector {
	return NewPerRequestConnector(func() (*gorm.DB, error) {
		return ConnectPostgres(dsn)
	})
}

func (c *PerRequestConnector) Acquire(ctx context.Context) (*gorm.DB, Release, error) {
	db, err := c.open()
	if err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		if closer, ok := db.ConnPool.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, nil, fmt.Errorf("failed to access sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	release := func() error {
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		return nil
	}

	return db.WithContext(ctx), release, nil
}

// PooledConnector shares a long-lived pool; releasing a handle is a no-op.
type PooledConnector struct {
	db *gorm.DB
}

// NewPooledConnector wraps an open pool.
func NewPooledConnector(db *gorm.DB) *PooledConnector {
	return &PooledConnector{db: db}
}

func (c *PooledConnector) Acquire(ctx context.Context) (*gorm.DB, Release, error) {
	if c.db == nil {
		return nil, nil, fmt.Errorf("database pool is not configured")
	}
	return c.db.WithContext(ctx), func() error { return nil }, nil
}
