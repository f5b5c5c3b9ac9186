package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for storefront domain events.
const (
	TopicCheckoutRequested  = "storefront.checkout.requested"
	TopicCheckoutRedirected = "storefront.checkout.redirected"
	TopicCheckoutFailed     = "storefront.checkout.failed"
	TopicAuthLoggedIn       = "storefront.auth.logged_in"
	TopicAuthLoggedOut      = "storefront.auth.logged_out"
)

// Aggregate types.
const (
	AggregateTypeCheckout = "checkout_attempt"
	AggregateTypeSession  = "session"
)

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

// CheckoutRequestedData is the payload of storefront.checkout.requested.
type CheckoutRequestedData struct {
	AttemptID string `json:"attempt_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	ItemCount int    `json:"item_count"`
	Subtotal  string `json:"subtotal"`
}

// CheckoutRedirectedData is the payload of storefront.checkout.redirected.
type CheckoutRedirectedData struct {
	AttemptID          string `json:"attempt_id"`
	SessionID          string `json:"session_id"`
	UserID             string `json:"user_id"`
	ProcessorSessionID string `json:"processor_session_id"`
}

// CheckoutFailedData is the payload of storefront.checkout.failed.
type CheckoutFailedData struct {
	AttemptID   string `json:"attempt_id"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	FailureKind string `json:"failure_kind"`
}

// LoggedInData is the payload of storefront.auth.logged_in.
type LoggedInData struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	ProviderID string `json:"provider_id"`
}

// LoggedOutData is the payload of storefront.auth.logged_out.
type LoggedOutData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishCheckoutRequested announces an attempt that passed validation.
func (p *Producer) PublishCheckoutRequested(ctx context.Context, a *domain.CheckoutAttempt) error {
	return p.publish(ctx, TopicCheckoutRequested, a.ID, AggregateTypeCheckout, CheckoutRequestedData{
		AttemptID: a.ID,
		SessionID: a.SessionID,
		UserID:    a.UserID,
		ItemCount: a.ItemCount,
		Subtotal:  a.Subtotal.StringFixed(2),
	})
}

// PublishCheckoutRedirected announces a buyer handed to the hosted checkout.
func (p *Producer) PublishCheckoutRedirected(ctx context.Context, a *domain.CheckoutAttempt) error {
	return p.publish(ctx, TopicCheckoutRedirected, a.ID, AggregateTypeCheckout, CheckoutRedirectedData{
		AttemptID:          a.ID,
		SessionID:          a.SessionID,
		UserID:             a.UserID,
		ProcessorSessionID: a.ProcessorSessionID,
	})
}

// PublishCheckoutFailed announces a failed attempt.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, a *domain.CheckoutAttempt) error {
	return p.publish(ctx, TopicCheckoutFailed, a.ID, AggregateTypeCheckout, CheckoutFailedData{
		AttemptID:   a.ID,
		SessionID:   a.SessionID,
		UserID:      a.UserID,
		FailureKind: a.FailureKind,
	})
}

// PublishLoggedIn announces a user signing in on a session.
func (p *Producer) PublishLoggedIn(ctx context.Context, sessionID string, user *domain.UserProfile, provider domain.ProviderConfig) error {
	return p.publish(ctx, TopicAuthLoggedIn, sessionID, AggregateTypeSession, LoggedInData{
		SessionID:  sessionID,
		UserID:     user.ID,
		ProviderID: provider.ProviderID,
	})
}

// PublishLoggedOut announces a session becoming anonymous.
func (p *Producer) PublishLoggedOut(ctx context.Context, sessionID, userID string) error {
	return p.publish(ctx, TopicAuthLoggedOut, sessionID, AggregateTypeSession, LoggedOutData{
		SessionID: sessionID,
		UserID:    userID,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}
