package cart

import (
	"github.com/shopspring/decimal"
)

// Key identifies a cart line: at most one Item exists per Key. Empty Size or
// Color means the shopper did not pick that variant dimension.
type Key struct {
	ProductID string
	Size      string
	Color     string
}

// Item is one cart line. Name, Image and prices are copied from the product
// when the line is created and do not follow later catalog changes.
type Item struct {
	Key
	Name        string
	Image       string
	Price       decimal.Decimal
	SalePrice   decimal.NullDecimal
	Quantity    int
	MaxQuantity int
}

// EffectivePrice returns the snapshotted sale price when set, otherwise the
// snapshotted list price.
func (it Item) EffectivePrice() decimal.Decimal {
	if it.SalePrice.Valid {
		return it.SalePrice.Decimal
	}
	return it.Price
}

// LineTotal returns the effective price times quantity.
func (it Item) LineTotal() decimal.Decimal {
	return it.EffectivePrice().Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// clampQuantity bounds qty to [1, maxQty]. A non-positive maxQty leaves the
// upper bound open.
func clampQuantity(qty, maxQty int) int {
	if maxQty > 0 && qty > maxQty {
		qty = maxQty
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}
