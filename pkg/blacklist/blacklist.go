package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist manages revoked tokens and refresh locks in Redis.
// Entries expire on their own TTL, so no sweeper is needed.
type TokenBlacklist struct {
	redis *redis.Client
}

// NewTokenBlacklist creates a new token blacklist service
func NewTokenBlacklist(redisClient *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{
		redis: redisClient,
	}
}

// Add adds a token to the blacklist with TTL
func (b *TokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:token:%s", token)

	err := b.redis.Set(ctx, key, "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}

	return nil
}

// AddAccessToken blacklists an access token for its remaining lifetime.
func (b *TokenBlacklist) AddAccessToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)

	// Already expired, nothing to revoke
	if ttl <= 0 {
		return nil
	}

	return b.Add(ctx, token, ttl)
}

// IsBlacklisted checks if a token is in the blacklist
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	key := fmt.Sprintf("blacklist:token:%s", token)

	exists, err := b.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return exists > 0, nil
}

// BlacklistUser invalidates all tokens issued before the current time.
// Used after a password change so outstanding access tokens die early.
func (b *TokenBlacklist) BlacklistUser(ctx context.Context, userID string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:user:%s", userID)

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	// Store current timestamp - tokens issued BEFORE this time are invalid
	invalidationTimestamp := time.Now().Unix()
	return b.redis.Set(ctx, key, invalidationTimestamp, ttl).Err()
}

// IsUserBlacklisted checks if a token was issued before the user's invalidation time
func (b *TokenBlacklist) IsUserBlacklisted(ctx context.Context, userID string, tokenIssuedAt time.Time) (bool, error) {
	key := fmt.Sprintf("blacklist:user:%s", userID)

	timestamp, err := b.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return tokenIssuedAt.Unix() < timestamp, nil
}

// AcquireRefreshLock takes the per-session single-flight lock around a
// refresh attempt. Returns false when another refresh for the same
// session already holds it. The TTL bounds lock lifetime if the holder
// dies mid-refresh.
func (b *TokenBlacklist) AcquireRefreshLock(ctx context.Context, sessionKey string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("refresh:lock:%s", sessionKey)

	ok, err := b.redis.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}

	return ok, nil
}

// ReleaseRefreshLock frees the single-flight lock.
func (b *TokenBlacklist) ReleaseRefreshLock(ctx context.Context, sessionKey string) error {
	key := fmt.Sprintf("refresh:lock:%s", sessionKey)

	if err := b.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release refresh lock: %w", err)
	}

	return nil
}
