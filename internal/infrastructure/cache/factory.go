package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/config"
)

// SessionStore combines the two tracker session ports. Both backends keep
// pending selections and state nonces in the same store so the factory can
// hand out a single instance.
type SessionStore interface {
	integration.SelectionStore
	integration.StateStore
}

// SessionStoreFactory creates tracker session stores based on configuration
type SessionStoreFactory struct {
	backend               string
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SessionStoreFactoryOption is a functional option for configuring the factory
type SessionStoreFactoryOption func(*SessionStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory sessions
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSessionStoreFactory creates a new factory. backend is the configured
// tracker.selection_store value ("redis" or "memory").
func NewSessionStoreFactory(backend string, cfg config.RedisConfig, opts ...SessionStoreFactoryOption) *SessionStoreFactory {
	f := &SessionStoreFactory{
		backend:               backend,
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-backed session store
func (f *SessionStoreFactory) CreateRedisStore() (SessionStore, error) {
	redisCfg := RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	store, err := NewRedisSessionStore(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis session store: %w", err)
	}

	return store, nil
}

// CreateInMemoryStore creates an in-memory session store
// WARNING: in-memory sessions are not shared across process instances, so
// authorization flows break when the callback lands on another instance
func (f *SessionStoreFactory) CreateInMemoryStore() SessionStore {
	return NewInMemorySessionStore()
}

// CreateStore creates a session store for the configured backend. When the
// backend is Redis and Redis is unavailable, it falls back to in-memory if
// AllowInMemoryFallback is true.
func (f *SessionStoreFactory) CreateStore() (SessionStore, error) {
	if f.backend == "memory" {
		f.logger.Info("using in-memory tracker session store")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis tracker session store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for tracker sessions but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory tracker session store. "+
		"Authorization flows will break behind a load balancer.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
