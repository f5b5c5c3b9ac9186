package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// Store is the part of the session repository the middleware needs.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Middleware loads the session named by the cookie, or starts an anonymous
// one, and stores it in the request context.
type Middleware struct {
	tokens *TokenManager
	store  Store
	cookie CookieConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewMiddleware creates the session middleware.
func NewMiddleware(tokens *TokenManager, store Store, cookie CookieConfig, logger *slog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		store:  store,
		cookie: cookie,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Handler wraps next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := m.load(ctx, r)
		if err != nil {
			httputil.WriteError(w, r, apperrors.ServiceUnavailable("session store unavailable"), m.logger)
			logger.WithContext(ctx, m.logger).ErrorContext(ctx, "load session",
				slog.String("error", err.Error()),
			)
			return
		}
		if sess == nil {
			sess, err = m.start(ctx, w)
			if err != nil {
				httputil.WriteError(w, r, apperrors.ServiceUnavailable("session store unavailable"), m.logger)
				logger.WithContext(ctx, m.logger).ErrorContext(ctx, "start session",
					slog.String("error", err.Error()),
				)
				return
			}
		}

		ctx = WithSession(ctx, sess)
		ctx = logger.WithSessionID(ctx, sess.ID)
		if sess.User != nil {
			ctx = logger.WithUserID(ctx, sess.User.ID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// load returns nil, nil when the request carries no usable session.
func (m *Middleware) load(ctx context.Context, r *http.Request) (*domain.Session, error) {
	c, err := r.Cookie(m.cookie.Name)
	if err != nil || c.Value == "" {
		return nil, nil
	}

	id, err := m.tokens.Parse(c.Value)
	if err != nil {
		m.logger.DebugContext(ctx, "discarding session cookie", slog.String("error", err.Error()))
		return nil, nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (m *Middleware) start(ctx context.Context, w http.ResponseWriter) (*domain.Session, error) {
	now := m.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	token, err := m.tokens.Issue(sess.ID)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.DebugContext(ctx, "session started", slog.String("session_id", sess.ID))
	return sess, nil
}
