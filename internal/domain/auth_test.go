package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFor(t *testing.T) {
	primary, ok := ProviderFor(ProviderPrimary)
	require.True(t, ok)
	assert.Equal(t, "google.com", primary.ProviderID)
	assert.Equal(t, "select_account", primary.CustomParameters["prompt"])
	assert.Equal(t, CredentialIDToken, primary.CredentialType)
	assert.Equal(t, "Logged in with Google", primary.LoginSucceededMessage())
	assert.Equal(t, "Google Login Failed", primary.LoginFailedMessage())

	secondary, ok := ProviderFor(ProviderSecondary)
	require.True(t, ok)
	assert.Equal(t, "github.com", secondary.ProviderID)
	assert.Equal(t, CredentialAccessToken, secondary.CredentialType)
	assert.Equal(t, "Logged in with GitHub", secondary.LoginSucceededMessage())
	assert.Equal(t, "GitHub Login Failed", secondary.LoginFailedMessage())

	_, ok = ProviderFor("tertiary")
	assert.False(t, ok)
}

func TestProviders_ReturnsCopy(t *testing.T) {
	list := Providers()
	require.Len(t, list, 2)
	list[0].DisplayName = "changed"

	again, _ := ProviderFor(ProviderPrimary)
	assert.Equal(t, "Google", again.DisplayName)
}

func TestProviderUser_Profile(t *testing.T) {
	u := ProviderUser{UID: "uid-1", DisplayName: "Ada", Email: "ada@example.com", PhotoURL: "https://img.example.com/ada.png"}
	assert.Equal(t, UserProfile{
		ID:          "uid-1",
		DisplayName: "Ada",
		Email:       "ada@example.com",
		AvatarURL:   "https://img.example.com/ada.png",
	}, u.Profile())
}

func TestSession_Anonymous(t *testing.T) {
	var nilSession *Session
	assert.True(t, nilSession.Anonymous())
	assert.True(t, (&Session{ID: "s"}).Anonymous())
	assert.False(t, (&Session{ID: "s", User: &UserProfile{ID: "u"}}).Anonymous())
}
