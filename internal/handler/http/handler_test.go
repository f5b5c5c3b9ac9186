package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	idmock "github.com/utafrali/storefront/internal/identity/mock"
	"github.com/utafrali/storefront/internal/processor"
	procmock "github.com/utafrali/storefront/internal/processor/mock"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

const (
	testSecret     = "handler-test-secret-at-least-32-bytes!"
	testCookieName = "sf_session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory attempt log ---

type memoryAttempts struct {
	mu       sync.Mutex
	attempts []domain.CheckoutAttempt
}

func (m *memoryAttempts) Create(_ context.Context, a *domain.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *memoryAttempts) ListBySession(_ context.Context, sessionID string, limit int) ([]domain.CheckoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.CheckoutAttempt{}
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.attempts[i].SessionID == sessionID {
			out = append(out, m.attempts[i])
		}
	}
	return out, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// --- Fixture ---

type fixture struct {
	router      http.Handler
	redis       *miniredis.Miniredis
	processor   *procmock.Processor
	identity    *idmock.Provider
	attempts    *memoryAttempts
	backendHits int
	backendMu   sync.Mutex
	backendFail bool
}

func (f *fixture) hits() int {
	f.backendMu.Lock()
	defer f.backendMu.Unlock()
	return f.backendHits
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()

	f := &fixture{
		redis:     miniredis.RunT(t),
		processor: procmock.New(),
		identity:  idmock.New(),
		attempts:  &memoryAttempts{},
	}

	client := goredis.NewClient(&goredis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { client.Close() })

	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.backendMu.Lock()
		f.backendHits++
		fail := f.backendFail
		f.backendMu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1"}`))
	}))
	t.Cleanup(backendSrv.Close)

	sessions := redisrepo.NewSessionRepository(client, time.Hour)
	carts := redisrepo.NewCartRepository(client, time.Hour)
	lock := redisrepo.NewCheckoutLock(client, time.Minute)
	producer := event.NewProducer(nopPublisher{}, logger)

	cartSvc := service.NewCartService(carts, logger)
	promise := processor.NewPromise(f.processor, "pk_test_123", logger)
	backendClient := backend.NewClient(
		httpclient.New(httpclient.SingleAttempt(httpclient.DefaultConfig())),
		backendSrv.URL, logger,
	)
	checkoutSvc := service.NewCheckoutService(lock, sessions, cartSvc, promise, backendClient, f.attempts, producer, logger)
	authSvc := service.NewAuthService(f.identity, sessions, producer, logger)

	mw := session.NewMiddleware(
		session.NewTokenManager(testSecret, time.Hour),
		sessions,
		session.CookieConfig{Name: testCookieName},
		logger,
	)

	f.router = NewRouter(cartSvc, checkoutSvc, authSvc, mw, health.NewHandler(), logger, RouterConfig{
		AllowedOrigins:      []string{"http://localhost:3000"},
		PprofAllowedCIDRs:   []string{"127.0.0.0/8"},
		LoginRateLimitRPS:   100,
		LoginRateLimitBurst: 100,
	})
	return f
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// client keeps the session cookie between requests, like a browser.
type client struct {
	t      *testing.T
	f      *fixture
	cookie *http.Cookie
}

func (f *fixture) browser(t *testing.T) *client {
	return &client{t: t, f: f}
}

func (c *client) do(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(c.t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.f.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == testCookieName {
			c.cookie = ck
		}
	}

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (c *client) login(credential string) {
	c.t.Helper()
	rec, _ := c.do(http.MethodPost, "/api/v1/auth/login/primary", map[string]string{"credential": credential})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
