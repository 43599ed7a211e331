// Package browse implements catalog filtering and sorting.
package browse

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// FilterState is the set of criteria applied to the catalog. Empty
// Collections, Sizes or Colors mean no restriction on that dimension.
type FilterState struct {
	Collections []string
	Sizes       []string
	Colors      []string
	// PriceMin and PriceMax bound the effective price, inclusive. They are
	// always applied.
	PriceMin    decimal.Decimal
	PriceMax    decimal.Decimal
	OnSale      bool
	InStock     bool
	NewArrivals bool
	MinRating   decimal.NullDecimal
	Sort        SortOption
}

// NewFilterState returns a state that keeps the whole catalog: price bounds
// span the catalog and the sort is SortFeatured.
func NewFilterState(catalog []product.Product) FilterState {
	f := ComputeFacets(catalog)
	return FilterState{
		PriceMin: f.PriceMin,
		PriceMax: f.PriceMax,
		Sort:     SortFeatured,
	}
}

// Clone returns a copy that shares no slices with st.
func (st FilterState) Clone() FilterState {
	out := st
	out.Collections = slices.Clone(st.Collections)
	out.Sizes = slices.Clone(st.Sizes)
	out.Colors = slices.Clone(st.Colors)
	return out
}

func anyIn(values, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	for _, v := range values {
		if slices.Contains(selected, v) {
			return true
		}
	}
	return false
}

// Match reports whether p passes every filter of st.
func (st FilterState) Match(p product.Product) bool {
	if len(st.Collections) > 0 && !slices.Contains(st.Collections, p.Collection) {
		return false
	}
	price := p.EffectivePrice()
	if price.LessThan(st.PriceMin) || price.GreaterThan(st.PriceMax) {
		return false
	}
	if !anyIn(p.Sizes, st.Sizes) || !anyIn(p.Colors, st.Colors) {
		return false
	}
	if (st.OnSale && !p.IsSale) || (st.InStock && !p.InStock) || (st.NewArrivals && !p.IsNew) {
		return false
	}
	if st.MinRating.Valid && p.Rating.LessThan(st.MinRating.Decimal) {
		return false
	}
	return true
}

// Apply filters and sorts the catalog. The result is a new slice; catalog
// is not modified. Apply is deterministic, so applying it to its own output
// with the same state returns the same list.
func Apply(catalog []product.Product, st FilterState) []product.Product {
	out := make([]product.Product, 0, len(catalog))
	for _, p := range catalog {
		if st.Match(p) {
			out = append(out, p)
		}
	}
	Sort(out, st.Sort)
	return out
}
