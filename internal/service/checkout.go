package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/processor"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/tracing"
)

const tracerName = "github.com/utafrali/storefront/internal/service"

// CartReader gives read-only access to a session's cart.
type CartReader interface {
	Snapshot(ctx context.Context, sessionID string) (domain.CartSnapshot, error)
}

// ProcessorSource hands out the shared payment-processor client.
// *processor.Promise implements it.
type ProcessorSource interface {
	Await(ctx context.Context) (processor.Client, error)
}

// SessionCreator requests payment sessions. *backend.Client implements it.
type SessionCreator interface {
	CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.SessionHandle, error)
}

// CheckoutService runs the checkout flow: validate the buyer, await the
// processor client, request a payment session, redirect.
type CheckoutService struct {
	lock      repository.CheckoutLock
	users     repository.UserReader
	carts     CartReader
	processor ProcessorSource
	backend   SessionCreator
	attempts  repository.AttemptRepository
	producer  *event.Producer
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	lock repository.CheckoutLock,
	users repository.UserReader,
	carts CartReader,
	processorSource ProcessorSource,
	backend SessionCreator,
	attempts repository.AttemptRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		lock:      lock,
		users:     users,
		carts:     carts,
		processor: processorSource,
		backend:   backend,
		attempts:  attempts,
		producer:  producer,
		logger:    logger,
		tracer:    tracing.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Initiate runs one checkout for the session. Flow failures are reported in
// the result; only infrastructure errors (lock, session or cart store) are
// returned as err. The flow ignores cancellation of ctx.
func (s *CheckoutService) Initiate(ctx context.Context, sessionID string) (*domain.CheckoutResult, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "checkout.Initiate",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	attemptID := s.newID()
	acquired, err := s.lock.Acquire(ctx, sessionID, attemptID, domain.StateValidating)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !acquired {
		checkoutOutcomes.WithLabelValues(string(domain.OutcomeBusy)).Inc()
		span.SetAttributes(attribute.String("checkout.outcome", string(domain.OutcomeBusy)))
		return &domain.CheckoutResult{Outcome: domain.OutcomeBusy}, nil
	}
	defer s.release(ctx, sessionID, attemptID)

	user, err := s.users.CurrentUser(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read current user: %w", err)
	}
	if user == nil {
		checkoutOutcomes.WithLabelValues(string(domain.OutcomeLogin)).Inc()
		span.SetAttributes(attribute.String("checkout.outcome", string(domain.OutcomeLogin)))
		return &domain.CheckoutResult{
			Outcome:  domain.OutcomeLogin,
			Redirect: &domain.Redirect{Path: domain.LoginPath},
		}, nil
	}

	items, err := s.carts.Snapshot(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read cart: %w", err)
	}

	attempt := &domain.CheckoutAttempt{
		ID:         attemptID,
		SessionID:  sessionID,
		UserID:     user.ID,
		BuyerEmail: user.Email,
		ItemCount:  len(items),
		Subtotal:   items.Subtotal(),
		CreatedAt:  s.now(),
	}
	span.SetAttributes(attribute.String("checkout.attempt_id", attempt.ID))
	ctx = logger.WithUserID(ctx, user.ID)
	log := logger.WithContext(ctx, s.logger).With(slog.String("attempt_id", attempt.ID))

	if err := s.producer.PublishCheckoutRequested(ctx, attempt); err != nil {
		log.WarnContext(ctx, "publish checkout requested event", slog.String("error", err.Error()))
	}

	url, err := s.run(ctx, attempt, domain.CheckoutRequest{Items: items, Email: user.Email})
	attempt.CompletedAt = s.now()

	if err != nil {
		kind := domain.FailureKind(err)
		s.setState(ctx, sessionID, attempt.ID, domain.StateFailed)
		attempt.Status = domain.AttemptFailed
		attempt.FailureKind = kind

		log.ErrorContext(ctx, "checkout failed",
			slog.String("failure_kind", kind),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		checkoutFailures.WithLabelValues(kind).Inc()
		checkoutOutcomes.WithLabelValues(string(domain.OutcomeFailed)).Inc()

		s.audit(ctx, log, attempt)
		if err := s.producer.PublishCheckoutFailed(ctx, attempt); err != nil {
			log.WarnContext(ctx, "publish checkout failed event", slog.String("error", err.Error()))
		}

		return &domain.CheckoutResult{
			Outcome:   domain.OutcomeFailed,
			Notice:    domain.ErrorNotice(domain.CheckoutFailedMessage),
			AttemptID: attempt.ID,
		}, nil
	}

	attempt.Status = domain.AttemptRedirected
	log.InfoContext(ctx, "checkout redirected",
		slog.String("processor_session_id", attempt.ProcessorSessionID),
		slog.Int("item_count", attempt.ItemCount),
		slog.String("subtotal", attempt.Subtotal.StringFixed(2)),
	)
	checkoutOutcomes.WithLabelValues(string(domain.OutcomeRedirect)).Inc()

	s.audit(ctx, log, attempt)
	if err := s.producer.PublishCheckoutRedirected(ctx, attempt); err != nil {
		log.WarnContext(ctx, "publish checkout redirected event", slog.String("error", err.Error()))
	}

	return &domain.CheckoutResult{
		Outcome:     domain.OutcomeRedirect,
		RedirectURL: url,
		AttemptID:   attempt.ID,
	}, nil
}

// run performs the three remote steps strictly in order and returns the
// hosted checkout URL. Every error it returns is a *domain.FlowError.
func (s *CheckoutService) run(ctx context.Context, attempt *domain.CheckoutAttempt, req domain.CheckoutRequest) (string, error) {
	s.setState(ctx, attempt.SessionID, attempt.ID, domain.StateAwaitingProcessorClient)
	var client processor.Client
	err := s.step(ctx, "await_processor_client", func(ctx context.Context) error {
		c, err := s.processor.Await(ctx)
		if err != nil {
			return domain.NewFlowError(domain.ErrProcessorUnavailable, err)
		}
		client = c
		return nil
	})
	if err != nil {
		return "", err
	}

	s.setState(ctx, attempt.SessionID, attempt.ID, domain.StateRequestingSession)
	var handle domain.SessionHandle
	err = s.step(ctx, "request_session", func(ctx context.Context) error {
		h, err := s.backend.CreateSession(ctx, req)
		if err != nil {
			var fe *domain.FlowError
			if !errors.As(err, &fe) {
				err = domain.NewFlowError(domain.ErrBackend, err)
			}
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return "", err
	}
	attempt.ProcessorSessionID = string(handle)

	s.setState(ctx, attempt.SessionID, attempt.ID, domain.StateRedirecting)
	var url string
	err = s.step(ctx, "redirect", func(ctx context.Context) error {
		res, err := client.RedirectToCheckout(ctx, handle)
		switch {
		case err != nil:
			return domain.NewFlowError(domain.ErrRedirectRejected, err)
		case res == nil:
			return domain.NewFlowError(domain.ErrRedirectRejected, errors.New("processor returned no result"))
		case res.Error != "":
			return domain.NewFlowError(domain.ErrRedirectRejected, errors.New(res.Error))
		case res.URL == "":
			return domain.NewFlowError(domain.ErrRedirectRejected, errors.New("processor returned no url"))
		}
		url = res.URL
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (s *CheckoutService) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "checkout."+name)
	start := time.Now()
	err := fn(ctx)
	checkoutStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	return err
}

func (s *CheckoutService) setState(ctx context.Context, sessionID, attemptID string, state domain.CheckoutState) {
	if err := s.lock.SetState(ctx, sessionID, attemptID, state); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "record checkout state",
			slog.String("state", string(state)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) release(ctx context.Context, sessionID, attemptID string) {
	if err := s.lock.Release(ctx, sessionID, attemptID); err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "release checkout lock",
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) audit(ctx context.Context, log *slog.Logger, attempt *domain.CheckoutAttempt) {
	if err := s.attempts.Create(ctx, attempt); err != nil {
		log.ErrorContext(ctx, "record checkout attempt", slog.String("error", err.Error()))
	}
}

// Status returns the busy indicator of the session.
func (s *CheckoutService) Status(ctx context.Context, sessionID string) (domain.CheckoutStatus, error) {
	state, err := s.lock.State(ctx, sessionID)
	if err != nil {
		return domain.CheckoutStatus{}, fmt.Errorf("read checkout state: %w", err)
	}
	return domain.CheckoutStatus{State: state, Processing: state.Processing()}, nil
}

// Attempts lists the session's most recent checkout attempts.
func (s *CheckoutService) Attempts(ctx context.Context, sessionID string, limit int) ([]domain.CheckoutAttempt, error) {
	attempts, err := s.attempts.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkout attempts: %w", err)
	}
	return attempts, nil
}
