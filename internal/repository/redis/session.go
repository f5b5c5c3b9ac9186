package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	sessionKeyPrefix = "session:"
	maxTxRetries     = 3
)

// SessionRepository implements repository.SessionRepository and
// repository.UserReader using Redis.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionRepository creates a Redis-backed session repository. Every
// write renews the TTL.
func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("session", id)
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+s.ID, data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return apperrors.Conflict(fmt.Sprintf("session %s already exists", s.ID))
	}
	return nil
}

// SetUser replaces the current user of the session.
func (r *SessionRepository) SetUser(ctx context.Context, id string, user *domain.UserProfile) error {
	return r.update(ctx, id, func(s *domain.Session) {
		u := *user
		s.User = &u
	})
}

// ClearUser removes the current user of the session.
func (r *SessionRepository) ClearUser(ctx context.Context, id string) error {
	return r.update(ctx, id, func(s *domain.Session) {
		s.User = nil
	})
}

// CurrentUser returns the session's user, or nil when anonymous or unknown.
func (r *SessionRepository) CurrentUser(ctx context.Context, sessionID string) (*domain.UserProfile, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.User, nil
}

// update applies fn to the stored session under WATCH so a concurrent
// write is never lost.
func (r *SessionRepository) update(ctx context.Context, id string, fn func(*domain.Session)) error {
	key := sessionKeyPrefix + id

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apperrors.NotFound("session", id)
			}
			return fmt.Errorf("redis get session: %w", err)
		}

		var s domain.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		fn(&s)
		s.UpdatedAt = r.now()

		out, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		return nil
	}
	return apperrors.Conflict(fmt.Sprintf("session %s updated concurrently", id))
}
