package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	procmock "github.com/utafrali/storefront/internal/processor/mock"
	"github.com/utafrali/storefront/internal/session"
)

const cartBody = `{"items":[{"product_id":"sku-1","unit_price":"19.99","quantity":2},{"product_id":"sku-2","unit_price":"5.00","quantity":1}]}`

func (c *client) sessionID() string {
	c.t.Helper()
	require.NotNil(c.t, c.cookie)
	sid, err := session.NewTokenManager(testSecret, time.Hour).Parse(c.cookie.Value)
	require.NoError(c.t, err)
	return sid
}

func TestCheckout_AnonymousIsSentToLogin(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.do(http.MethodPut, "/api/v1/cart", cartBody)

	rec, env := b.do(http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.CheckoutResult
	decodeData(t, env, &res)
	assert.Equal(t, domain.OutcomeLogin, res.Outcome)
	require.NotNil(t, res.Redirect)
	assert.Equal(t, "/login", res.Redirect.Path)

	assert.Equal(t, 0, f.hits())
	assert.Equal(t, 0, f.processor.Loads())
}

func TestCheckout_RedirectsToHostedCheckout(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.do(http.MethodPut, "/api/v1/cart", cartBody)
	b.login("alice")

	rec, env := b.do(http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.CheckoutResult
	decodeData(t, env, &res)
	assert.Equal(t, domain.OutcomeRedirect, res.Outcome)
	assert.Equal(t, procmock.BaseURL+"cs_test_1", res.RedirectURL)
	assert.NotEmpty(t, res.AttemptID)

	assert.Equal(t, 1, f.hits())
	assert.Equal(t, []domain.SessionHandle{"cs_test_1"}, f.processor.Calls())

	_, env = b.do(http.MethodGet, "/api/v1/cart", nil)
	var view domain.CartView
	decodeData(t, env, &view)
	assert.Equal(t, "44.98", view.Subtotal, "checkout must not modify the cart")

	_, env = b.do(http.MethodGet, "/api/v1/checkout/attempts", nil)
	var attempts []domain.CheckoutAttempt
	decodeData(t, env, &attempts)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptRedirected, attempts[0].Status)
	assert.Equal(t, "alice@example.com", attempts[0].BuyerEmail)
	assert.Equal(t, "44.98", attempts[0].Subtotal.StringFixed(2))
}

func TestCheckout_BackendFailureShowsGenericNotice(t *testing.T) {
	f := newFixture(t)
	f.backendFail = true
	b := f.browser(t)
	b.login("alice")

	rec, env := b.do(http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CHECKOUT_FAILED", env.Error.Code)
	assert.Equal(t, "An error occurred during checkout. Please try again.", env.Error.Message)
	assert.Empty(t, f.processor.Calls())

	_, env = b.do(http.MethodGet, "/api/v1/checkout/status", nil)
	var status domain.CheckoutStatus
	decodeData(t, env, &status)
	assert.Equal(t, domain.StateIdle, status.State)
	assert.False(t, status.Processing)

	_, env = b.do(http.MethodGet, "/api/v1/auth/me", nil)
	var me struct {
		User *domain.UserProfile `json:"user"`
	}
	decodeData(t, env, &me)
	require.NotNil(t, me.User, "checkout failure must not sign the user out")
	assert.Equal(t, "alice", me.User.ID)
}

func TestCheckout_RedirectRejected(t *testing.T) {
	f := newFixture(t)
	f.processor.RejectMessage = "session expired"
	b := f.browser(t)
	b.login("alice")

	rec, env := b.do(http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "An error occurred during checkout. Please try again.", env.Error.Message)
	assert.NotContains(t, rec.Body.String(), "session expired")
	assert.Equal(t, 1, f.hits())
}

func TestCheckout_BusySessionIsConflict(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.login("alice")
	require.NoError(t, f.redis.Set("checkout:lock:"+b.sessionID(), "att-other|"+string(domain.StateRequestingSession)))

	rec, env := b.do(http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CHECKOUT_IN_PROGRESS", env.Error.Code)
	assert.Equal(t, 0, f.hits())

	_, env = b.do(http.MethodGet, "/api/v1/checkout/status", nil)
	var status domain.CheckoutStatus
	decodeData(t, env, &status)
	assert.Equal(t, domain.StateRequestingSession, status.State)
	assert.True(t, status.Processing)
}

func TestCheckout_AttemptsLimit(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.login("alice")
	for i := 0; i < 3; i++ {
		rec, _ := b.do(http.MethodPost, "/api/v1/checkout", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, env := b.do(http.MethodGet, "/api/v1/checkout/attempts?limit=2", nil)
	var attempts []domain.CheckoutAttempt
	decodeData(t, env, &attempts)
	assert.Len(t, attempts, 2)

	_, env = b.do(http.MethodGet, "/api/v1/checkout/attempts?limit=abc", nil)
	decodeData(t, env, &attempts)
	assert.Len(t, attempts, 3)
}
