package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// TokenBlacklist revokes JWTs ahead of their natural expiry. Two kinds of
// revocation exist: single tokens by JTI (logout of one session), and all
// of a user's tokens issued before a cutoff (forced logout everywhere).
type TokenBlacklist interface {
	// AddToBlacklist revokes one token by JTI. ttl should cover the
	// token's remaining lifetime; after that the entry is useless anyway.
	AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error

	// IsBlacklisted reports whether the JTI has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// AddUserTokensToBlacklist records now as the user's revocation
	// cutoff. Tokens issued at or before the cutoff stop validating.
	AddUserTokensToBlacklist(ctx context.Context, userID string, ttl time.Duration) error

	// IsUserTokenInvalidated reports whether a token issued at
	// tokenIssuedAt falls under the user's revocation cutoff.
	IsUserTokenInvalidated(ctx context.Context, userID string, tokenIssuedAt time.Time) (bool, error)
}

// Redis key prefixes for the two revocation kinds.
const (
	jtiKeyPrefix  = "token:blacklist:jti:"
	userKeyPrefix = "token:blacklist:user:"
)

// RedisTokenBlacklist stores revocations in Redis so they are visible to
// every instance. It borrows its client and never closes it.
type RedisTokenBlacklist struct {
	client *redis.Client
}

// NewRedisTokenBlacklistWithClient wraps an existing Redis client,
// typically the one already serving tracker sessions.
func NewRedisTokenBlacklistWithClient(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

func (b *RedisTokenBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; a permanent Redis key would just leak.
		return nil
	}
	if err := b.client.Set(ctx, jtiKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, jtiKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return n > 0, nil
}

func (b *RedisTokenBlacklist) AddUserTokensToBlacklist(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := strconv.FormatInt(time.Now().Unix(), 10)
	if err := b.client.Set(ctx, userKeyPrefix+userID, cutoff, ttl).Err(); err != nil {
		return fmt.Errorf("invalidate user tokens: %w", err)
	}
	return nil
}

func (b *RedisTokenBlacklist) IsUserTokenInvalidated(ctx context.Context, userID string, tokenIssuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, userKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user invalidation: %w", err)
	}

	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse invalidation cutoff %q: %w", raw, err)
	}
	return tokenIssuedAt.Unix() <= cutoff, nil
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// InMemoryTokenBlacklist keeps revocations in process memory. Single
// instance only: a logout on one instance is invisible to the others.
type InMemoryTokenBlacklist struct {
	jtis  *ttlcache.Cache[string, struct{}]
	users *ttlcache.Cache[string, time.Time]
}

// NewInMemoryTokenBlacklist creates an in-memory blacklist. Entries evict
// themselves when their TTL runs out.
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	jtis := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	users := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go jtis.Start()
	go users.Start()

	return &InMemoryTokenBlacklist{jtis: jtis, users: users}
}

func (b *InMemoryTokenBlacklist) AddToBlacklist(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.jtis.Set(jti, struct{}{}, ttl)
	return nil
}

func (b *InMemoryTokenBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return b.jtis.Get(jti) != nil, nil
}

func (b *InMemoryTokenBlacklist) AddUserTokensToBlacklist(_ context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.users.Set(userID, time.Now(), ttl)
	return nil
}

func (b *InMemoryTokenBlacklist) IsUserTokenInvalidated(_ context.Context, userID string, tokenIssuedAt time.Time) (bool, error) {
	item := b.users.Get(userID)
	if item == nil {
		return false, nil
	}
	return !tokenIssuedAt.After(item.Value()), nil
}

// Close stops the eviction goroutines.
func (b *InMemoryTokenBlacklist) Close() error {
	b.jtis.Stop()
	b.users.Stop()
	return nil
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
