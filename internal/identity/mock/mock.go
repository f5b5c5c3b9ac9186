// Package mock provides an in-memory identity provider for local runs and tests.
package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
)

// ErrRejected is returned by SignIn for credentials starting with "invalid".
var ErrRejected = errors.New("mock identity: credential rejected")

// Provider signs in any credential. The credential becomes the user's UID.
// Set SignInErr or SignOutErr to inject failures.
type Provider struct {
	SignInErr  error
	SignOutErr error

	mu       sync.Mutex
	signIns  int
	signOuts int
}

// New returns a Provider that accepts every credential.
func New() *Provider {
	return &Provider{}
}

// SignIn implements identity.Provider.
func (p *Provider) SignIn(ctx context.Context, provider domain.ProviderConfig, credential string) (domain.ProviderUser, error) {
	p.mu.Lock()
	p.signIns++
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.ProviderUser{}, err
	}
	if p.SignInErr != nil {
		return domain.ProviderUser{}, p.SignInErr
	}
	if credential == "" || strings.HasPrefix(credential, "invalid") {
		return domain.ProviderUser{}, ErrRejected
	}

	return domain.ProviderUser{
		UID:         credential,
		DisplayName: provider.DisplayName + " User",
		Email:       credential + "@example.com",
		PhotoURL:    "https://avatars.example.com/" + credential + ".png",
	}, nil
}

// SignOut implements identity.Provider.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return p.SignOutErr
}

// SignIns returns how many times SignIn was called.
func (p *Provider) SignIns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIns
}

// SignOuts returns how many times SignOut was called.
func (p *Provider) SignOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}
