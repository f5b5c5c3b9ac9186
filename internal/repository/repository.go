package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// SessionRepository stores sessions and their current user.
type SessionRepository interface {
	// Get returns the session, or a NOT_FOUND AppError when it does not exist.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Create stores a new session, failing if the ID is taken.
	Create(ctx context.Context, session *domain.Session) error

	// SetUser makes user the current user of the session.
	SetUser(ctx context.Context, id string, user *domain.UserProfile) error

	// ClearUser makes the session anonymous.
	ClearUser(ctx context.Context, id string) error
}

// UserReader gives read-only access to a session's current user.
type UserReader interface {
	// CurrentUser returns nil when the session is anonymous or unknown.
	CurrentUser(ctx context.Context, sessionID string) (*domain.UserProfile, error)
}

// CartRepository stores one cart per session.
type CartRepository interface {
	// Get returns the cart, or a NOT_FOUND AppError when it does not exist.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// Save overwrites the session's cart.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the session's cart.
	Delete(ctx context.Context, sessionID string) error
}

// CheckoutLock guards against concurrent checkouts of one session. The lock
// holds the current checkout state and is owned by the token that took it.
type CheckoutLock interface {
	// Acquire takes the lock for token in state. It returns false when already held.
	Acquire(ctx context.Context, sessionID, token string, state domain.CheckoutState) (bool, error)

	// SetState updates the state of a lock still held by token.
	SetState(ctx context.Context, sessionID, token string, state domain.CheckoutState) error

	// State returns the current state, StateIdle when the lock is free.
	State(ctx context.Context, sessionID string) (domain.CheckoutState, error)

	// Release frees the lock if token still holds it, returning the session
	// to StateIdle.
	Release(ctx context.Context, sessionID, token string) error
}

// AttemptRepository is the append-only checkout audit log.
type AttemptRepository interface {
	// Create appends a finished attempt.
	Create(ctx context.Context, attempt *domain.CheckoutAttempt) error

	// ListBySession returns the most recent attempts of a session, newest first.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.CheckoutAttempt, error)
}
