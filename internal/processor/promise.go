package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Promise loads the processor client once per process. Concurrent awaiters
// share a single in-flight load. A successful client is kept; a failed load
// is forgotten so the next Await starts over.
type Promise struct {
	loader Loader
	key    string
	logger *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	client Client
}

// NewPromise creates a promise that loads a client for key with loader.
func NewPromise(loader Loader, key string, logger *slog.Logger) *Promise {
	return &Promise{loader: loader, key: key, logger: logger}
}

// Start begins loading in the background.
func (p *Promise) Start(ctx context.Context) {
	go func() {
		if _, err := p.Await(ctx); err != nil {
			p.logger.WarnContext(ctx, "payment processor client preload failed",
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Await returns the client, loading it if needed. Cancelling ctx stops the
// wait but not the shared load.
func (p *Promise) Await(ctx context.Context) (Client, error) {
	if c := p.loaded(); c != nil {
		return c, nil
	}

	ch := p.group.DoChan("client", func() (any, error) {
		if c := p.loaded(); c != nil {
			return c, nil
		}

		start := time.Now()
		c, err := p.loader.Load(context.WithoutCancel(ctx), p.key)
		if err == nil && c == nil {
			err = ErrNoClient
		}
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.client = c
		p.mu.Unlock()

		p.logger.InfoContext(ctx, "payment processor client ready",
			slog.Duration("duration", time.Since(start)),
		)
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Client), nil
	}
}

// Ready reports whether a client has been loaded.
func (p *Promise) Ready() bool {
	return p.loaded() != nil
}

func (p *Promise) loaded() Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}
