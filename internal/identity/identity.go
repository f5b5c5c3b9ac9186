// Package identity defines the federated identity provider used for login.
package identity

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// Provider completes a federated sign-in started in the browser popup.
type Provider interface {
	// SignIn exchanges the credential produced by the popup for the
	// provider's user profile.
	SignIn(ctx context.Context, provider domain.ProviderConfig, credential string) (domain.ProviderUser, error)
	// SignOut ends the provider-side session.
	SignOut(ctx context.Context) error
}
