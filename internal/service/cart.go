package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// CartService owns the cart of each session. The subtotal is recomputed
// from the snapshot on every read and write.
type CartService struct {
	carts  repository.CartRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, logger *slog.Logger) *CartService {
	return &CartService{
		carts:  carts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReplaceCartInput is the body of a cart replacement.
type ReplaceCartInput struct {
	Items domain.CartSnapshot `json:"items" validate:"max=200,dive"`
}

// Get returns the session's cart view. A session without a cart has an
// empty one.
func (s *CartService) Get(ctx context.Context, sessionID string) (domain.CartView, error) {
	items, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}
	return domain.NewCartView(items), nil
}

// Snapshot returns the stored line items of the session, possibly empty.
func (s *CartService) Snapshot(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	cart, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.CartSnapshot{}, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart.Items, nil
}

// Replace stores items as the new cart and returns the recomputed view.
func (s *CartService) Replace(ctx context.Context, sessionID string, items domain.CartSnapshot) (domain.CartView, error) {
	if items == nil {
		items = domain.CartSnapshot{}
	}

	cart := &domain.Cart{
		SessionID: sessionID,
		Items:     items,
		UpdatedAt: s.now(),
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.CartView{}, fmt.Errorf("save cart: %w", err)
	}

	view := domain.NewCartView(items)
	logger.WithContext(ctx, s.logger).DebugContext(ctx, "cart replaced",
		slog.Int("item_count", len(items)),
		slog.String("subtotal", view.Subtotal),
	)
	return view, nil
}

// Clear empties the session's cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (domain.CartView, error) {
	if err := s.carts.Delete(ctx, sessionID); err != nil {
		return domain.CartView{}, fmt.Errorf("clear cart: %w", err)
	}
	return domain.NewCartView(nil), nil
}
