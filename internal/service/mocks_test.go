package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock Cart Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// --- Mock Session Repository ---

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSessionRepository) SetUser(ctx context.Context, id string, user *domain.UserProfile) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *mockSessionRepository) ClearUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock User Reader ---

type mockUserReader struct {
	mock.Mock
}

func (m *mockUserReader) CurrentUser(ctx context.Context, sessionID string) (*domain.UserProfile, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserProfile), args.Error(1)
}

// --- Mock Cart Reader ---

type mockCartReader struct {
	mock.Mock
}

func (m *mockCartReader) Snapshot(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.CartSnapshot), args.Error(1)
}

// --- Mock Session Creator ---

type mockSessionCreator struct {
	mock.Mock
}

func (m *mockSessionCreator) CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.SessionHandle, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.SessionHandle), args.Error(1)
}

// --- Mock Attempt Repository ---

type mockAttemptRepository struct {
	mock.Mock
}

func (m *mockAttemptRepository) Create(ctx context.Context, a *domain.CheckoutAttempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAttemptRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.CheckoutAttempt, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CheckoutAttempt), args.Error(1)
}

// --- Mock Identity Provider ---

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) SignIn(ctx context.Context, provider domain.ProviderConfig, credential string) (domain.ProviderUser, error) {
	args := m.Called(ctx, provider, credential)
	return args.Get(0).(domain.ProviderUser), args.Error(1)
}

func (m *mockIdentity) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Recording Publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return p.err
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func newTestEventProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

// --- Fake Checkout Lock ---

type heldLock struct {
	token string
	state domain.CheckoutState
}

// fakeLock records every state a checkout passes through.
type fakeLock struct {
	mu         sync.Mutex
	held       map[string]heldLock
	history    []domain.CheckoutState
	tokens     []string
	acquireErr error
	releases   int
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]heldLock)}
}

func (l *fakeLock) Acquire(_ context.Context, sessionID, token string, state domain.CheckoutState) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if _, ok := l.held[sessionID]; ok {
		return false, nil
	}
	l.held[sessionID] = heldLock{token: token, state: state}
	l.history = append(l.history, state)
	l.tokens = append(l.tokens, token)
	return true, nil
}

func (l *fakeLock) SetState(_ context.Context, sessionID, token string, state domain.CheckoutState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[sessionID]; ok && h.token == token {
		l.held[sessionID] = heldLock{token: token, state: state}
		l.history = append(l.history, state)
	}
	return nil
}

func (l *fakeLock) State(_ context.Context, sessionID string) (domain.CheckoutState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[sessionID]; ok {
		return h.state, nil
	}
	return domain.StateIdle, nil
}

func (l *fakeLock) Release(_ context.Context, sessionID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[sessionID]; ok && h.token == token {
		delete(l.held, sessionID)
	}
	l.releases++
	return nil
}

func (l *fakeLock) Tokens() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tokens...)
}

func (l *fakeLock) History() []domain.CheckoutState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.CheckoutState(nil), l.history...)
}
