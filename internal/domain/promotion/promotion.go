package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidPromotion is returned when a promotion code is not in the table.
	ErrInvalidPromotion = errors.New("invalid promotion code")
	// ErrMinimumNotMet is returned when the order subtotal is below the
	// promotion's minimum order amount.
	ErrMinimumNotMet = errors.New("minimum order not met")
	// ErrNotEligible is returned when the promotion's eligibility predicate
	// rejects the current order.
	ErrNotEligible = errors.New("order not eligible for promotion")
)

// Promotion is an immutable promotion code definition.
type Promotion struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MinimumOrder is the smallest subtotal the promotion applies to. Zero
	// means no minimum.
	MinimumOrder decimal.Decimal
	Description  string
	// FreeShipping marks the promotion that waives the shipping charge.
	FreeShipping bool
	// Eligibility is an optional CEL expression over subtotal, item_count
	// and shipping_method that must evaluate to true.
	Eligibility string
}

// MeetsMinimum reports whether subtotal satisfies the minimum order amount.
func (p Promotion) MeetsMinimum(subtotal decimal.Decimal) bool {
	return !subtotal.LessThan(p.MinimumOrder)
}

// Facts describes the order a promotion is evaluated against.
type Facts struct {
	Subtotal       decimal.Decimal
	ItemCount      int
	ShippingMethod string
}

// Lookup resolves promotion codes. Implementations must match codes
// case-insensitively.
type Lookup interface {
	// Find returns the promotion registered under code.
	Find(code string) (Promotion, bool)
	// Validate finds the promotion and checks it against the order facts,
	// returning ErrInvalidPromotion, ErrMinimumNotMet or ErrNotEligible.
	Validate(code string, facts Facts) (Promotion, error)
}
