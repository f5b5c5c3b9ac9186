package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/identity"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// AuthService signs users in and out through the identity provider. It is
// the only writer of a session's current user.
type AuthService struct {
	identity identity.Provider
	sessions repository.SessionRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(provider identity.Provider, sessions repository.SessionRepository, producer *event.Producer, logger *slog.Logger) *AuthService {
	return &AuthService{
		identity: provider,
		sessions: sessions,
		producer: producer,
		logger:   logger,
	}
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Credential string `json:"credential" validate:"required,max=8192"`
}

// Providers lists the providers the browser may offer.
func (s *AuthService) Providers() []domain.ProviderConfig {
	return domain.Providers()
}

// Login completes a sign-in with the provider selected by kind. A rejected
// sign-in is reported through the result's error notice with a nil User;
// err is reserved for unknown providers and session store failures.
func (s *AuthService) Login(ctx context.Context, sessionID string, kind domain.ProviderKind, credential string) (*domain.LoginResult, error) {
	provider, ok := domain.ProviderFor(kind)
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown provider %q", kind))
	}
	log := logger.WithContext(ctx, s.logger).With(slog.String("provider", provider.ProviderID))

	pu, err := s.identity.SignIn(ctx, provider, credential)
	if err != nil {
		ferr := domain.NewFlowError(domain.ErrProviderAuthFailure, err)
		log.ErrorContext(ctx, "login failed",
			slog.String("failure_kind", domain.FailureKind(ferr)),
			slog.String("error", ferr.Error()),
		)
		authAttempts.WithLabelValues("login", provider.ProviderID, "failure").Inc()
		return &domain.LoginResult{Notice: domain.ErrorNotice(provider.LoginFailedMessage())}, nil
	}

	profile := pu.Profile()
	if err := s.sessions.SetUser(ctx, sessionID, &profile); err != nil {
		return nil, fmt.Errorf("store current user: %w", err)
	}
	ctx = logger.WithUserID(ctx, profile.ID)

	log.InfoContext(ctx, "user logged in", slog.String("user_id", profile.ID))
	authAttempts.WithLabelValues("login", provider.ProviderID, "success").Inc()
	if err := s.producer.PublishLoggedIn(ctx, sessionID, &profile, provider); err != nil {
		log.WarnContext(ctx, "publish logged in event", slog.String("error", err.Error()))
	}

	return &domain.LoginResult{
		User:   &profile,
		Notice: domain.SuccessNotice(provider.LoginSucceededMessage()),
		Redirect: &domain.Redirect{
			Path:    domain.LandingPath,
			DelayMS: domain.LandingDelayMS,
		},
	}, nil
}

// Logout reads the current user, signs out at the provider and, only if that
// succeeds, makes the session anonymous. A provider failure is reported
// through an error notice; a session store failure aborts before sign-out.
func (s *AuthService) Logout(ctx context.Context, sessionID string) (*domain.LogoutResult, error) {
	log := logger.WithContext(ctx, s.logger)

	user, err := s.Me(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.identity.SignOut(ctx); err != nil {
		ferr := domain.NewFlowError(domain.ErrProviderSignOutFailure, err)
		log.ErrorContext(ctx, "logout failed",
			slog.String("failure_kind", domain.FailureKind(ferr)),
			slog.String("error", ferr.Error()),
		)
		authAttempts.WithLabelValues("logout", "", "failure").Inc()
		return &domain.LogoutResult{Notice: domain.ErrorNotice(domain.LogoutFailedMessage)}, nil
	}

	if err := s.sessions.ClearUser(ctx, sessionID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("clear current user: %w", err)
	}

	authAttempts.WithLabelValues("logout", "", "success").Inc()
	if user != nil {
		log.InfoContext(ctx, "user logged out", slog.String("user_id", user.ID))
		if err := s.producer.PublishLoggedOut(ctx, sessionID, user.ID); err != nil {
			log.WarnContext(ctx, "publish logged out event", slog.String("error", err.Error()))
		}
	}

	return &domain.LogoutResult{Notice: domain.SuccessNotice(domain.LogoutSucceededMessage)}, nil
}

// Me returns the session's current user, or nil when anonymous.
func (s *AuthService) Me(ctx context.Context, sessionID string) (*domain.UserProfile, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess.User, nil
}
