package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/cart"
)

// Address is the shipping destination entered at checkout.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Item is an order line copied from the cart at checkout.
type Item struct {
	ProductID string
	Size      string
	Color     string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

// Order is the payload handed to the external order service.
type Order struct {
	Number               string
	Items                []Item
	Totals               cart.Totals
	PromotionCode        string
	ShippingMethod       string
	ShippingAddress      Address
	PaymentMethodDisplay string
	PlacedAt             time.Time
}

// Sink receives placed orders. Submission is fire-and-forget from the
// storefront's point of view: errors are logged, never returned to the
// shopper.
type Sink interface {
	Submit(ctx context.Context, o Order) error
}

// NewNumber returns a short, human-readable order number.
func NewNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BRU-" + strings.ToUpper(id[:10])
}

func itemsFrom(lines []cart.Item) []Item {
	out := make([]Item, len(lines))
	for i, it := range lines {
		out[i] = Item{
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Name:      it.Name,
			UnitPrice: it.EffectivePrice(),
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		}
	}
	return out
}
