// Package processor defines the payment-processor client used to send the
// buyer to the hosted checkout page.
package processor

import (
	"context"
	"errors"

	"github.com/utafrali/storefront/internal/domain"
)

// ErrNoClient is returned when a loader succeeds without producing a client.
var ErrNoClient = errors.New("processor loader returned no client")

// RedirectResult is the outcome of a redirect request. A non-empty Error
// means the processor refused the session.
type RedirectResult struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Client redirects a buyer to the processor's hosted checkout.
type Client interface {
	RedirectToCheckout(ctx context.Context, sessionID domain.SessionHandle) (*RedirectResult, error)
}

// Loader initializes a Client for a publishable key.
type Loader interface {
	Load(ctx context.Context, publishableKey string) (Client, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, publishableKey string) (Client, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, publishableKey string) (Client, error) {
	return f(ctx, publishableKey)
}
