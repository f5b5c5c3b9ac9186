package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

func TestCheckoutLock_AcquireIsExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Minute)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "s-1", "att-1", domain.StateValidating)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, "s-1", "att-1", domain.StateValidating)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while the first checkout runs")

	ok, err = lock.Acquire(ctx, "s-2", "att-2", domain.StateValidating)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per session")
}

func TestCheckoutLock_StateTransitions(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Minute)
	ctx := context.Background()

	state, err := lock.State(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, state)

	_, err = lock.Acquire(ctx, "s-1", "att-1", domain.StateValidating)
	require.NoError(t, err)
	mr.FastForward(20 * time.Second)

	require.NoError(t, lock.SetState(ctx, "s-1", "att-1", domain.StateRequestingSession))
	state, err = lock.State(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRequestingSession, state)
	assert.Equal(t, 40*time.Second, mr.TTL("checkout:lock:s-1"), "SetState keeps the original TTL")

	require.NoError(t, lock.Release(ctx, "s-1", "att-1"))
	state, err = lock.State(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, state)
}

func TestCheckoutLock_SetStateWithoutLockIsNoop(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Minute)

	require.NoError(t, lock.SetState(context.Background(), "s-1", "att-1", domain.StateFailed))
	assert.False(t, mr.Exists("checkout:lock:s-1"))
}

func TestCheckoutLock_ExpiresAfterCrash(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Minute)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "s-1", "att-1", domain.StateRedirecting)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	ok, err := lock.Acquire(ctx, "s-1", "att-1", domain.StateValidating)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckoutLock_ExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Second)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "s-1", "att-a", domain.StateValidating)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = lock.Acquire(ctx, "s-1", "att-b", domain.StateValidating)
	require.NoError(t, err)
	require.True(t, ok, "an expired lock can be taken by the next checkout")

	require.NoError(t, lock.SetState(ctx, "s-1", "att-a", domain.StateFailed))
	require.NoError(t, lock.Release(ctx, "s-1", "att-a"))

	state, err := lock.State(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateValidating, state, "the expired holder must not touch the successor's state")

	ok, err = lock.Acquire(ctx, "s-1", "att-c", domain.StateValidating)
	require.NoError(t, err)
	assert.False(t, ok, "the successor still holds the lock")

	require.NoError(t, lock.Release(ctx, "s-1", "att-b"))
	assert.False(t, mr.Exists("checkout:lock:s-1"))
}

func TestCheckoutLock_TokenPrefixDoesNotMatch(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Minute)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "s-1", "att-10", domain.StateValidating)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx, "s-1", "att-1"))
	assert.True(t, mr.Exists("checkout:lock:s-1"))
}

func TestCheckoutLock_StoresTokenWithState(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewCheckoutLock(client, time.Minute)

	_, err := lock.Acquire(context.Background(), "s-1", "att-1", domain.StateRedirecting)
	require.NoError(t, err)

	v, err := mr.Get("checkout:lock:s-1")
	require.NoError(t, err)
	assert.Equal(t, "att-1|redirecting", v)
}
