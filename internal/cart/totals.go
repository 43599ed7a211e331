package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
)

// DefaultTaxRate is the tax rate of a new cart.
var DefaultTaxRate = decimal.RequireFromString("0.07")

// State is the mutable part of a cart. Everything else is derived from it.
type State struct {
	Items          []Item
	ShippingMethod string
	Promotion      *promotion.Promotion
	TaxRate        decimal.Decimal
}

// NewState returns an empty cart with the default shipping method and the
// given tax rate.
func NewState(taxRate decimal.Decimal) State {
	return State{
		ShippingMethod: shipping.DefaultMethod,
		TaxRate:        taxRate,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Items = append([]Item(nil), s.Items...)
	if s.Promotion != nil {
		p := *s.Promotion
		out.Promotion = &p
	}
	return out
}

// Totals holds the values derived from a State.
type Totals struct {
	TotalItems int
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	Shipping   decimal.Decimal
	Total      decimal.Decimal
}

// ComputeTotals derives every total of st. It reads nothing but its inputs.
func ComputeTotals(st State, rates shipping.Lookup) Totals {
	subtotal := Subtotal(st.Items)
	tax := Tax(subtotal, st.TaxRate)
	discount := Discount(st.Promotion, subtotal)
	ship := ShippingCost(st, subtotal, rates)

	return Totals{
		TotalItems: TotalItems(st.Items),
		Subtotal:   subtotal,
		Tax:        tax,
		Discount:   discount,
		Shipping:   ship,
		Total:      Total(subtotal, tax, ship, discount),
	}
}

// TotalItems returns the sum of line quantities.
func TotalItems(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// Subtotal returns the sum of effective price times quantity over all lines.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Tax returns subtotal*rate rounded to cents.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

// Discount returns what the applied promotion takes off the subtotal, or zero
// without one.
func Discount(p *promotion.Promotion, subtotal decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return promotion.Apply(*p, subtotal)
}

// ShippingCost returns zero when the free-shipping promotion is applied and
// its minimum is met, otherwise the price of the selected rate. An unknown
// rate costs nothing.
func ShippingCost(st State, subtotal decimal.Decimal, rates shipping.Lookup) decimal.Decimal {
	if p := st.Promotion; p != nil && p.FreeShipping && p.MeetsMinimum(subtotal) {
		return decimal.Zero
	}
	r, ok := rates.Find(st.ShippingMethod)
	if !ok {
		return decimal.Zero
	}
	return r.Price
}

// Total returns subtotal + tax + shipping - discount, floored at zero.
func Total(subtotal, tax, ship, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(tax).Add(ship).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
