// Package mock provides an in-memory payment processor for local runs and tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/processor"
)

// BaseURL is where mock checkout pages are served from.
const BaseURL = "https://checkout.example.test/pay/"

// Processor is both a processor.Loader and a processor.Client. Set LoadErr,
// RedirectErr or RejectMessage to inject failures.
type Processor struct {
	LoadErr       error
	RedirectErr   error
	RejectMessage string

	mu    sync.Mutex
	loads int
	calls []domain.SessionHandle
}

// New returns a Processor that succeeds on every call.
func New() *Processor {
	return &Processor{}
}

// Load implements processor.Loader.
func (p *Processor) Load(ctx context.Context, _ string) (processor.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.loads++
	p.mu.Unlock()
	if p.LoadErr != nil {
		return nil, p.LoadErr
	}
	return p, nil
}

// RedirectToCheckout implements processor.Client.
func (p *Processor) RedirectToCheckout(ctx context.Context, sessionID domain.SessionHandle) (*processor.RedirectResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, sessionID)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.RedirectErr != nil {
		return nil, p.RedirectErr
	}
	if p.RejectMessage != "" {
		return &processor.RedirectResult{Error: p.RejectMessage}, nil
	}
	if sessionID == "" {
		return &processor.RedirectResult{Error: "missing checkout session id"}, nil
	}
	return &processor.RedirectResult{URL: BaseURL + string(sessionID)}, nil
}

// Loads returns how many times Load was called.
func (p *Processor) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// Calls returns the session handles passed to RedirectToCheckout, in order.
func (p *Processor) Calls() []domain.SessionHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SessionHandle, len(p.calls))
	copy(out, p.calls)
	return out
}

// ErrUnavailable is a ready-made LoadErr.
var ErrUnavailable = errors.New("mock processor: script failed to load")
