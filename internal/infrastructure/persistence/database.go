package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/titledesk/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database pairs the shared gorm handle with the sql.DB pool behind it.
// The pool is resolved once at open time so health probes never have to
// re-derive it per request.
type Database struct {
	DB   *gorm.DB
	pool *sql.DB
}

// Option adjusts the gorm configuration used when opening the connection.
type Option func(*gorm.Config)

// WithGormLogger routes query logging through the given implementation,
// usually the zap-backed one, instead of the silent default.
func WithGormLogger(l logger.Interface) Option {
	return func(cfg *gorm.Config) {
		cfg.Logger = l
	}
}

// NewDatabase opens a pooled Postgres connection and verifies it with a
// ping before handing it back.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := pool.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, pool: pool}, nil
}

// Close releases the connection pool.
func (d *Database) Close() error {
	return d.pool.Close()
}

// Ping verifies the database is still reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.PingContext(ctx)
}

// Stats reports connection pool counters for the health endpoint.
func (d *Database) Stats() sql.DBStats {
	return d.pool.Stats()
}
