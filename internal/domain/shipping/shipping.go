package shipping

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultMethod is the shipping method selected for a new cart.
const DefaultMethod = "standard"

// ErrUnknownMethod is returned when a shipping method id is not in the table.
var ErrUnknownMethod = errors.New("unknown shipping method")

// Rate is one shipping tier.
type Rate struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	EstimatedDays string
}

// Lookup resolves shipping rates by id.
type Lookup interface {
	Find(id string) (Rate, bool)
}

var _ Lookup = (*Table)(nil)

// Table is an immutable list of shipping rates.
type Table struct {
	rates []Rate
	byID  map[string]int
}

// NewTable builds a Table. Rate ids must be unique and prices non-negative.
func NewTable(rates ...Rate) (*Table, error) {
	t := &Table{
		rates: make([]Rate, 0, len(rates)),
		byID:  make(map[string]int, len(rates)),
	}
	for _, r := range rates {
		if r.ID == "" {
			return nil, errors.New("shipping rate id is required")
		}
		if r.Price.IsNegative() {
			return nil, errors.Errorf("shipping rate %s: negative price", r.ID)
		}
		if _, dup := t.byID[r.ID]; dup {
			return nil, errors.Errorf("duplicate shipping rate %q", r.ID)
		}
		t.byID[r.ID] = len(t.rates)
		t.rates = append(t.rates, r)
	}
	return t, nil
}

// Find returns the rate with the given id.
func (t *Table) Find(id string) (Rate, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Rate{}, false
	}
	return t.rates[i], true
}

// All returns the rates in table order.
func (t *Table) All() []Rate {
	out := make([]Rate, len(t.rates))
	copy(out, t.rates)
	return out
}

// Defaults returns the storefront's shipping tiers.
func Defaults() []Rate {
	return []Rate{
		{
			ID:            "standard",
			Name:          "Standard",
			Description:   "Ground delivery",
			Price:         decimal.RequireFromString("4.99"),
			EstimatedDays: "5-7",
		},
		{
			ID:            "express",
			Name:          "Express",
			Description:   "Priority courier",
			Price:         decimal.RequireFromString("14.99"),
			EstimatedDays: "2-3",
		},
		{
			ID:            "overnight",
			Name:          "Overnight",
			Description:   "Next business day",
			Price:         decimal.RequireFromString("29.99"),
			EstimatedDays: "1",
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
