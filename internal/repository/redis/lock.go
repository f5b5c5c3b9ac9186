package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const (
	lockKeyPrefix = "checkout:lock:"
	lockValueSep  = "|"
)

// setStateScript rewrites the state of a lock held by ARGV[1], keeping its TTL.
var setStateScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. "|" then
	return redis.call("SET", KEYS[1], ARGV[1] .. "|" .. ARGV[2], "KEEPTTL")
end
return false
`)

// releaseScript deletes the lock only while ARGV[1] still holds it.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. "|" then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CheckoutLock implements repository.CheckoutLock with SET NX. The value is
// "<token>|<state>"; only the holder of token may change or release it. The
// TTL only bounds how long a crashed process can hold the lock.
type CheckoutLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCheckoutLock creates a Redis-backed checkout lock.
func NewCheckoutLock(client *redis.Client, ttl time.Duration) *CheckoutLock {
	return &CheckoutLock{client: client, ttl: ttl}
}

func lockValue(token string, state domain.CheckoutState) string {
	return token + lockValueSep + string(state)
}

// Acquire takes the lock for sessionID on behalf of token, in state.
func (l *CheckoutLock) Acquire(ctx context.Context, sessionID, token string, state domain.CheckoutState) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+sessionID, lockValue(token, state), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire checkout lock: %w", err)
	}
	return ok, nil
}

// SetState records state on a lock held by token without extending its TTL.
// It is a no-op when the lock has expired or belongs to another checkout.
func (l *CheckoutLock) SetState(ctx context.Context, sessionID, token string, state domain.CheckoutState) error {
	err := setStateScript.Run(ctx, l.client, []string{lockKeyPrefix + sessionID}, token, string(state)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis set checkout state: %w", err)
	}
	return nil
}

// State returns the state stored in the lock, or StateIdle.
func (l *CheckoutLock) State(ctx context.Context, sessionID string) (domain.CheckoutState, error) {
	v, err := l.client.Get(ctx, lockKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StateIdle, nil
		}
		return "", fmt.Errorf("redis get checkout state: %w", err)
	}
	if _, state, ok := strings.Cut(v, lockValueSep); ok {
		return domain.CheckoutState(state), nil
	}
	return domain.CheckoutState(v), nil
}

// Release frees the lock if token still holds it.
func (l *CheckoutLock) Release(ctx context.Context, sessionID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + sessionID}, token).Err(); err != nil {
		return fmt.Errorf("redis release checkout lock: %w", err)
	}
	return nil
}
