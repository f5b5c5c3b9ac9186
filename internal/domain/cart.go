package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product/price/quantity tuple in a cart.
type LineItem struct {
	ProductID string          `json:"product_id" validate:"required,max=128"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CartSnapshot is an ordered, read-only view of the cart contents.
type CartSnapshot []LineItem

// Subtotal returns the sum of unit price times quantity, rounded to cents.
// Negative prices or quantities are summed as given.
func (c CartSnapshot) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum.Round(2)
}

// SubtotalString formats Subtotal with exactly two fractional digits.
func (c CartSnapshot) SubtotalString() string {
	return c.Subtotal().StringFixed(2)
}

// Cart is the stored cart of one session.
type Cart struct {
	SessionID string       `json:"session_id"`
	Items     CartSnapshot `json:"items"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CartView is what the browser renders. Subtotal is derived from Items on
// every read and never stored.
type CartView struct {
	Items    CartSnapshot `json:"items"`
	Subtotal string       `json:"subtotal"`
}

// NewCartView builds the view for items.
func NewCartView(items CartSnapshot) CartView {
	if items == nil {
		items = CartSnapshot{}
	}
	return CartView{Items: items, Subtotal: items.SubtotalString()}
}
