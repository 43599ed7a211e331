package promotion

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Apply calculates the discount the promotion grants on subtotal. The result
// is rounded to cents and never exceeds the subtotal.
func Apply(p Promotion, subtotal decimal.Decimal) decimal.Decimal {
	switch p.DiscountType {
	case DiscountPercentage:
		return applyPercentage(p, subtotal)
	case DiscountFixed:
		return applyFixed(p, subtotal)
	default:
		return zero
	}
}

func applyPercentage(p Promotion, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(p.Value).Div(hundred)
	return floorAtZero(amount).Round(2)
}

func applyFixed(p Promotion, subtotal decimal.Decimal) decimal.Decimal {
	amount := decimal.Min(p.Value, subtotal)
	return floorAtZero(amount).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
