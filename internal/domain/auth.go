package domain

import "fmt"

// ProviderKind selects a configured identity provider.
type ProviderKind string

const (
	ProviderPrimary   ProviderKind = "primary"
	ProviderSecondary ProviderKind = "secondary"
)

// CredentialType names the OAuth credential a provider's popup yields.
type CredentialType string

const (
	CredentialIDToken     CredentialType = "id_token"
	CredentialAccessToken CredentialType = "access_token"
)

// ProviderConfig describes how to start a federated sign-in.
type ProviderConfig struct {
	Kind             ProviderKind      `json:"kind"`
	ProviderID       string            `json:"provider_id"`
	DisplayName      string            `json:"display_name"`
	CredentialType   CredentialType    `json:"credential_type"`
	Scopes           []string          `json:"scopes,omitempty"`
	CustomParameters map[string]string `json:"custom_parameters,omitempty"`
}

var providers = []ProviderConfig{
	{
		Kind:             ProviderPrimary,
		ProviderID:       "google.com",
		DisplayName:      "Google",
		CredentialType:   CredentialIDToken,
		Scopes:           []string{"email", "profile"},
		CustomParameters: map[string]string{"prompt": "select_account"},
	},
	{
		Kind:           ProviderSecondary,
		ProviderID:     "github.com",
		DisplayName:    "GitHub",
		CredentialType: CredentialAccessToken,
		Scopes:         []string{"read:user", "user:email"},
	},
}

// Providers returns every supported provider.
func Providers() []ProviderConfig {
	out := make([]ProviderConfig, len(providers))
	copy(out, providers)
	return out
}

// ProviderFor returns the provider configured for kind.
func ProviderFor(kind ProviderKind) (ProviderConfig, bool) {
	for _, p := range providers {
		if p.Kind == kind {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// LoginSucceededMessage is shown after a successful sign-in with p.
func (p ProviderConfig) LoginSucceededMessage() string {
	return fmt.Sprintf("Logged in with %s", p.DisplayName)
}

// LoginFailedMessage is shown after a failed sign-in with p.
func (p ProviderConfig) LoginFailedMessage() string {
	return fmt.Sprintf("%s Login Failed", p.DisplayName)
}

const (
	LogoutSucceededMessage = "Logged out successfully!"
	LogoutFailedMessage    = "Logout Failed"

	// LandingPath and LandingDelayMS control the navigation after login.
	LandingPath    = "/"
	LandingDelayMS = 1500
)

// ProviderUser is the profile an identity provider returns.
type ProviderUser struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Profile maps u onto the local user record.
func (u ProviderUser) Profile() UserProfile {
	return UserProfile{
		ID:          u.UID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.PhotoURL,
	}
}

// LoginResult is returned by a login attempt.
type LoginResult struct {
	User     *UserProfile `json:"user,omitempty"`
	Notice   *Notice      `json:"notice"`
	Redirect *Redirect    `json:"redirect,omitempty"`
}

// LogoutResult is returned by a logout attempt.
type LogoutResult struct {
	Notice *Notice `json:"notice"`
}
