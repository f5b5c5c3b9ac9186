package session

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

type contextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session loaded by Middleware, or nil.
func FromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(contextKey{}).(*domain.Session)
	return s
}

// IDFromContext returns the current session ID, or "".
func IDFromContext(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.ID
	}
	return ""
}
