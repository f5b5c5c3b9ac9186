// Package stripe resolves payment sessions against a Stripe-compatible
// hosted checkout API and returns the page the buyer must be sent to.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/processor"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "payment-processor"

// ErrInvalidKey is returned by Load for keys that are not publishable keys.
var ErrInvalidKey = errors.New("stripe: publishable key must start with pk_")

// Loader builds clients bound to one API base URL.
type Loader struct {
	doer    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewLoader creates a Loader that sends requests through doer.
func NewLoader(doer httpclient.Doer, baseURL string, logger *slog.Logger) *Loader {
	return &Loader{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Load validates the publishable key and returns a client using it.
func (l *Loader) Load(_ context.Context, publishableKey string) (processor.Client, error) {
	if !strings.HasPrefix(publishableKey, "pk_") {
		return nil, ErrInvalidKey
	}
	return &Client{
		doer:    l.doer,
		baseURL: l.baseURL,
		key:     publishableKey,
		logger:  l.logger,
	}, nil
}

// Client implements processor.Client.
type Client struct {
	doer    httpclient.Doer
	baseURL string
	key     string
	logger  *slog.Logger
}

type checkoutSession struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// RedirectToCheckout looks up sessionID and returns its hosted page URL.
// Rejections by the processor come back in RedirectResult.Error; transport
// and server failures come back as err.
func (c *Client) RedirectToCheckout(ctx context.Context, sessionID domain.SessionHandle) (*processor.RedirectResult, error) {
	if sessionID == "" {
		return &processor.RedirectResult{Error: "missing checkout session id"}, nil
	}

	endpoint := c.baseURL + "/v1/checkout/sessions/" + url.PathEscape(string(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build checkout session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := httpclient.ParseResponseError(resp, serviceName)
		var se *httpclient.StatusError
		if errors.As(perr, &se) && httpclient.IsClientError(se.StatusCode) {
			msg := se.Message
			if msg == "" {
				msg = http.StatusText(se.StatusCode)
			}
			return &processor.RedirectResult{Error: msg}, nil
		}
		return nil, perr
	}
	defer func() { _ = resp.Body.Close() }()

	var cs checkoutSession
	if err := json.NewDecoder(resp.Body).Decode(&cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	switch {
	case cs.Status == "expired":
		return &processor.RedirectResult{Error: "checkout session expired"}, nil
	case cs.Status == "complete":
		return &processor.RedirectResult{Error: "checkout session already completed"}, nil
	case cs.URL == "":
		return &processor.RedirectResult{Error: "checkout session has no redirect url"}, nil
	}

	c.logger.DebugContext(ctx, "checkout session resolved",
		slog.String("processor_session_id", cs.ID),
		slog.String("status", cs.Status),
	)
	return &processor.RedirectResult{URL: cs.URL}, nil
}
