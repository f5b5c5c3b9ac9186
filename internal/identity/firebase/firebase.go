// Package firebase signs users in through the Identity Toolkit REST API.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "identity-toolkit"

// ErrEmptyCredential is returned when the popup produced no credential.
var ErrEmptyCredential = errors.New("firebase: empty credential")

// Config holds the Identity Toolkit endpoint settings.
type Config struct {
	BaseURL    string
	APIKey     string
	RequestURI string
}

// Provider implements identity.Provider.
type Provider struct {
	doer   httpclient.Doer
	cfg    Config
	logger *slog.Logger
}

// New creates a Provider. Requests go through doer.
func New(doer httpclient.Doer, cfg Config, logger *slog.Logger) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{doer: doer, cfg: cfg, logger: logger}
}

type signInRequest struct {
	PostBody          string `json:"postBody"`
	RequestURI        string `json:"requestUri"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID     string `json:"localId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoUrl"`
	ProviderID  string `json:"providerId"`
}

// SignIn calls accounts:signInWithIdp with the OAuth credential from the popup,
// posted under the provider's credential type. An unset type means id_token.
func (p *Provider) SignIn(ctx context.Context, provider domain.ProviderConfig, credential string) (domain.ProviderUser, error) {
	if strings.TrimSpace(credential) == "" {
		return domain.ProviderUser{}, ErrEmptyCredential
	}

	credType := provider.CredentialType
	if credType == "" {
		credType = domain.CredentialIDToken
	}

	postBody := url.Values{}
	postBody.Set(string(credType), credential)
	postBody.Set("providerId", provider.ProviderID)

	body, err := json.Marshal(signInRequest{
		PostBody:          postBody.Encode(),
		RequestURI:        p.cfg.RequestURI,
		ReturnSecureToken: true,
	})
	if err != nil {
		return domain.ProviderUser{}, fmt.Errorf("marshal sign-in request: %w", err)
	}

	endpoint := p.cfg.BaseURL + "/v1/accounts:signInWithIdp?key=" + url.QueryEscape(p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ProviderUser{}, fmt.Errorf("create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.doer.Do(ctx, req)
	if err != nil {
		return domain.ProviderUser{}, fmt.Errorf("call identity toolkit: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ProviderUser{}, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ProviderUser{}, fmt.Errorf("decode sign-in response: %w", err)
	}
	if out.LocalID == "" {
		return domain.ProviderUser{}, errors.New("identity toolkit returned no localId")
	}

	p.logger.DebugContext(ctx, "identity toolkit sign-in",
		slog.String("provider_id", provider.ProviderID),
		slog.String("uid", out.LocalID),
	)

	return domain.ProviderUser{
		UID:         out.LocalID,
		DisplayName: out.DisplayName,
		Email:       out.Email,
		PhotoURL:    out.PhotoURL,
	}, nil
}

// SignOut has nothing to revoke server-side: Identity Toolkit sessions are
// bearer tokens held by the browser. It fails only if ctx is done.
func (p *Provider) SignOut(ctx context.Context) error {
	return ctx.Err()
}
