package browse

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Engine holds a catalog and a FilterState that is edited one control at a
// time. It is not safe for concurrent use.
type Engine struct {
	catalog []product.Product
	facets  Facets
	state   FilterState
}

// NewEngine creates an Engine with a reset filter state.
func NewEngine(catalog []product.Product) *Engine {
	return &Engine{
		catalog: catalog,
		facets:  ComputeFacets(catalog),
		state:   NewFilterState(catalog),
	}
}

// Facets returns the facets of the whole catalog, computed once in NewEngine.
func (e *Engine) Facets() Facets { return e.facets }

// State returns a copy of the current filter state.
func (e *Engine) State() FilterState { return e.state.Clone() }

func toggle(set []string, v string) []string {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(set, i, i+1)
	}
	return append(set, v)
}

// ToggleCollection selects slug, or deselects it when already selected.
func (e *Engine) ToggleCollection(slug string) {
	e.state.Collections = toggle(e.state.Collections, slug)
}

// ToggleSize flips the selection of size.
func (e *Engine) ToggleSize(size string) {
	e.state.Sizes = toggle(e.state.Sizes, size)
}

// ToggleColor flips the selection of color.
func (e *Engine) ToggleColor(color string) {
	e.state.Colors = toggle(e.state.Colors, color)
}

// SetPriceRange sets the inclusive price bounds. Swapped bounds are put in
// order.
func (e *Engine) SetPriceRange(lo, hi decimal.Decimal) {
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	e.state.PriceMin, e.state.PriceMax = lo, hi
}

// SetOnSale restricts the results to products with a sale price.
func (e *Engine) SetOnSale(v bool) { e.state.OnSale = v }

// SetInStock restricts the results to in-stock products.
func (e *Engine) SetInStock(v bool) { e.state.InStock = v }

// SetNewArrivals restricts the results to products marked new.
func (e *Engine) SetNewArrivals(v bool) { e.state.NewArrivals = v }

// SetMinRating sets the minimum rating; an invalid value clears it.
func (e *Engine) SetMinRating(r decimal.NullDecimal) { e.state.MinRating = r }

// SetSort selects the result order.
func (e *Engine) SetSort(opt SortOption) { e.state.Sort = opt }

// Reset restores the initial state: no selections, full price range,
// featured sort.
func (e *Engine) Reset() {
	e.state = NewFilterState(e.catalog)
}

// ActiveFilterCount counts selected values plus every enabled restriction.
// A price range narrower than the catalog's counts as one filter; the sort
// never counts.
func (e *Engine) ActiveFilterCount() int {
	st := e.state
	n := len(st.Collections) + len(st.Sizes) + len(st.Colors)
	for _, on := range []bool{st.OnSale, st.InStock, st.NewArrivals, st.MinRating.Valid} {
		if on {
			n++
		}
	}
	if !st.PriceMin.Equal(e.facets.PriceMin) || !st.PriceMax.Equal(e.facets.PriceMax) {
		n++
	}
	return n
}

// Products applies the current state to the catalog.
func (e *Engine) Products() []product.Product {
	return Apply(e.catalog, e.state)
}
