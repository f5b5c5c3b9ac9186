// Package backend talks to the payment backend that issues checkout sessions.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "payment-backend"

// Client creates payment sessions on the backend.
type Client struct {
	doer   httpclient.Doer
	url    string
	logger *slog.Logger
}

// NewClient returns a Client that POSTs to url.
func NewClient(doer httpclient.Doer, url string, logger *slog.Logger) *Client {
	return &Client{doer: doer, url: url, logger: logger}
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession sends req to the backend and returns the session handle.
// Transport failures and non-2xx statuses wrap domain.ErrBackend; a body
// without a usable id wraps domain.ErrMalformedResponse.
func (c *Client) CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.SessionHandle, error) {
	if req.Items == nil {
		req.Items = domain.CartSnapshot{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.NewFlowError(domain.ErrBackend, fmt.Errorf("marshal checkout request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewFlowError(domain.ErrBackend, fmt.Errorf("create checkout request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return "", domain.NewFlowError(domain.ErrBackend, fmt.Errorf("call payment backend: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.NewFlowError(domain.ErrBackend, httpclient.ParseResponseError(resp, serviceName))
	}
	defer func() { _ = resp.Body.Close() }()

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewFlowError(domain.ErrMalformedResponse, fmt.Errorf("decode payment backend response: %w", err))
	}
	if out.ID == "" {
		return "", domain.NewFlowError(domain.ErrMalformedResponse, fmt.Errorf("payment backend returned status %d without id", resp.StatusCode))
	}

	c.logger.InfoContext(ctx, "payment session created",
		slog.String("processor_session_id", out.ID),
		slog.Int("item_count", len(req.Items)),
	)

	return domain.SessionHandle(out.ID), nil
}
