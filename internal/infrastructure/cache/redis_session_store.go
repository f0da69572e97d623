package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/titledesk/backend/internal/domain/integration"
)

const (
	selectionKeyPrefix = "tracker:selection:"
	stateKeyPrefix     = "tracker:state:"
)

// RedisSessionStore keeps short-lived tracker authorization artifacts
// (pending account selections and OAuth state nonces) in Redis. This is
// suitable for distributed deployments where the callback request may land
// on a different instance than the one that started the flow.
type RedisSessionStore struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSessionStore creates a new Redis-backed session store
func NewRedisSessionStore(cfg RedisConfig) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSessionStore{client: client}, nil
}

// NewRedisSessionStoreWithClient creates a store with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisSessionStoreWithClient(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Begin stores a pending selection under the user's key until it expires.
// A later Begin for the same user replaces the earlier selection.
func (s *RedisSessionStore) Begin(ctx context.Context, selection *integration.PendingSelection) error {
	ttl := time.Until(selection.CreatedAt.Add(integration.PendingSelectionTTL))
	if ttl <= 0 {
		return integration.ErrSelectionExpired
	}

	payload, err := json.Marshal(selection)
	if err != nil {
		return fmt.Errorf("failed to encode pending selection: %w", err)
	}

	key := selectionKeyPrefix + selection.UserID.String()
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending selection: %w", err)
	}
	return nil
}

// Peek returns the user's pending selection without consuming it.
// Returns ErrSelectionExpired when none is stored or the TTL has elapsed.
func (s *RedisSessionStore) Peek(ctx context.Context, userID uuid.UUID) (*integration.PendingSelection, error) {
	key := selectionKeyPrefix + userID.String()

	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, integration.ErrSelectionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending selection: %w", err)
	}

	var selection integration.PendingSelection
	if err := json.Unmarshal(payload, &selection); err != nil {
		return nil, fmt.Errorf("failed to decode pending selection: %w", err)
	}
	return &selection, nil
}

// Clear removes the user's pending selection. Clearing an absent selection
// is not an error.
func (s *RedisSessionStore) Clear(ctx context.Context, userID uuid.UUID) error {
	key := selectionKeyPrefix + userID.String()
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear pending selection: %w", err)
	}
	return nil
}

// PutState stores the user's OAuth state nonce for the authorization flow
func (s *RedisSessionStore) PutState(ctx context.Context, userID uuid.UUID, state string, ttl time.Duration) error {
	key := stateKeyPrefix + userID.String()
	if err := s.client.Set(ctx, key, state, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store state nonce: %w", err)
	}
	return nil
}

// TakeState returns and consumes the user's state nonce. Each nonce can be
// taken once; a second take (or an expired nonce) fails the authorization.
func (s *RedisSessionStore) TakeState(ctx context.Context, userID uuid.UUID) (string, error) {
	key := stateKeyPrefix + userID.String()

	state, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", integration.ErrAuthorizationFailed
	}
	if err != nil {
		return "", fmt.Errorf("failed to take state nonce: %w", err)
	}
	return state, nil
}

// Close closes the Redis client
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisSessionStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisSessionStore implements both session ports
var (
	_ integration.SelectionStore = (*RedisSessionStore)(nil)
	_ integration.StateStore     = (*RedisSessionStore)(nil)
)
