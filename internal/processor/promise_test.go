package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

type stubClient struct{}

func (stubClient) RedirectToCheckout(context.Context, domain.SessionHandle) (*RedirectResult, error) {
	return &RedirectResult{URL: "https://pay.example.test"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPromise_LoadsOnceForConcurrentAwaiters(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, key string) (Client, error) {
		calls.Add(1)
		assert.Equal(t, "pk_test_123", key)
		<-release
		return stubClient{}, nil
	})
	p := NewPromise(loader, "pk_test_123", quietLogger())

	var wg sync.WaitGroup
	results := make([]Client, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Await(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range results {
		assert.NotNil(t, c)
	}
	assert.True(t, p.Ready())

	_, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cached client must not reload")
}

func TestPromise_FailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(ctx context.Context, key string) (Client, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("script blocked")
		}
		return stubClient{}, nil
	})
	p := NewPromise(loader, "pk_test", quietLogger())

	_, err := p.Await(context.Background())
	require.EqualError(t, err, "script blocked")
	assert.False(t, p.Ready())

	c, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPromise_NilClientIsAnError(t *testing.T) {
	p := NewPromise(LoaderFunc(func(context.Context, string) (Client, error) {
		return nil, nil
	}), "pk_test", quietLogger())

	_, err := p.Await(context.Background())
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestPromise_AwaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := NewPromise(LoaderFunc(func(context.Context, string) (Client, error) {
		<-release
		return stubClient{}, nil
	}), "pk_test", quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPromise_StartPreloads(t *testing.T) {
	loaded := make(chan struct{})
	p := NewPromise(LoaderFunc(func(context.Context, string) (Client, error) {
		defer close(loaded)
		return stubClient{}, nil
	}), "pk_test", quietLogger())

	p.Start(context.Background())

	select {
	case <-loaded:
	case <-time.After(time.Second):
		t.Fatal("loader was not called")
	}
	assert.Eventually(t, p.Ready, time.Second, 5*time.Millisecond)
}
