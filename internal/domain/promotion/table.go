package promotion

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
)

const (
	bloomFPR = 0.001
	// bloomMinCodes is the table size from which unknown codes are screened
	// by the bloom filter. Smaller tables go straight to the map.
	bloomMinCodes = 1024
)

var _ Lookup = (*Table)(nil)

type entry struct {
	promo       Promotion
	eligibility cel.Program
}

// Table is an immutable, in-memory promotion table. Codes are matched
// case-insensitively. Large tables, typically bulk-loaded with LoadFile,
// screen unknown codes with a bloom filter before the map lookup.
type Table struct {
	order  []string
	byCode map[string]entry
	// filter is nil below bloomMinCodes.
	filter *bloom.BloomFilter
}

// NewTable validates the promotions and builds a Table. Eligibility
// expressions are compiled once here.
func NewTable(promos ...Promotion) (*Table, error) {
	t := &Table{
		order:  make([]string, 0, len(promos)),
		byCode: make(map[string]entry, len(promos)),
	}
	for _, p := range promos {
		if err := validate(p); err != nil {
			return nil, err
		}
		code := normalize(p.Code)
		if _, dup := t.byCode[code]; dup {
			return nil, errors.Errorf("duplicate promotion code %q", code)
		}

		e := entry{promo: p}
		if p.Eligibility != "" {
			prg, err := compileEligibility(p.Eligibility)
			if err != nil {
				return nil, errors.Wrapf(err, "promotion %s eligibility", code)
			}
			e.eligibility = prg
		}

		t.byCode[code] = e
		t.order = append(t.order, code)
	}

	if len(t.order) >= bloomMinCodes {
		t.filter = bloom.NewWithEstimates(uint(len(t.order)), bloomFPR)
		for _, code := range t.order {
			t.filter.AddString(code)
		}
	}
	return t, nil
}

func validate(p Promotion) error {
	if normalize(p.Code) == "" {
		return errors.New("promotion code is required")
	}
	if p.Value.IsNegative() {
		return errors.Errorf("promotion %s: negative value", p.Code)
	}
	if p.MinimumOrder.IsNegative() {
		return errors.Errorf("promotion %s: negative minimum order", p.Code)
	}
	switch p.DiscountType {
	case DiscountPercentage:
		if p.Value.GreaterThan(hundred) {
			return errors.Errorf("promotion %s: percentage above 100", p.Code)
		}
	case DiscountFixed:
	default:
		return errors.Errorf("promotion %s: unsupported discount type %q", p.Code, p.DiscountType)
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Find returns the promotion registered under code, ignoring case.
func (t *Table) Find(code string) (Promotion, bool) {
	e, ok := t.lookup(code)
	return e.promo, ok
}

func (t *Table) lookup(code string) (entry, bool) {
	code = normalize(code)
	if code == "" || (t.filter != nil && !t.filter.TestString(code)) {
		return entry{}, false
	}
	e, ok := t.byCode[code]
	return e, ok
}

// Validate finds the promotion for code and checks the minimum order and the
// eligibility predicate against facts.
func (t *Table) Validate(code string, facts Facts) (Promotion, error) {
	e, ok := t.lookup(code)
	if !ok {
		return Promotion{}, ErrInvalidPromotion
	}
	if !e.promo.MeetsMinimum(facts.Subtotal) {
		return Promotion{}, ErrMinimumNotMet
	}
	if e.eligibility != nil {
		eligible, err := evalEligibility(e.eligibility, facts)
		if err != nil {
			return Promotion{}, fmt.Errorf("%w: %v", ErrNotEligible, err)
		}
		if !eligible {
			return Promotion{}, ErrNotEligible
		}
	}
	return e.promo, nil
}

// All returns the promotions in registration order.
func (t *Table) All() []Promotion {
	out := make([]Promotion, len(t.order))
	for i, code := range t.order {
		out[i] = t.byCode[code].promo
	}
	return out
}

// Len returns the number of promotions in the table.
func (t *Table) Len() int {
	return len(t.order)
}

// Defaults returns the storefront's built-in promotion codes.
func Defaults() []Promotion {
	return []Promotion{
		{
			Code:         "WELCOME10",
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Description:  "10% off your first order",
		},
		{
			Code:         "SUMMER25",
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(25),
			MinimumOrder: decimal.NewFromInt(100),
			Description:  "25% off orders over $100",
		},
		{
			Code:         "FREESHIP",
			DiscountType: DiscountFixed,
			Value:        decimal.Zero,
			MinimumOrder: decimal.NewFromInt(50),
			Description:  "Free shipping on orders over $50",
			FreeShipping: true,
		},
		{
			Code:         "TAKE15",
			DiscountType: DiscountFixed,
			Value:        decimal.NewFromInt(15),
			MinimumOrder: decimal.NewFromInt(75),
			Description:  "$15 off orders over $75",
		},
		{
			Code:         "BULK20",
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(20),
			Description:  "20% off when buying 5 or more items",
			Eligibility:  "item_count >= 5",
		},
	}
}

// DefaultTable builds a Table from Defaults.
func DefaultTable() *Table {
	t, err := NewTable(Defaults()...)
	if err != nil {
		panic(err)
	}
	return t
}
