package browse

import (
	"cmp"
	"slices"

	"github.com/xenking/storefront/internal/domain/product"
)

// SortOption selects the ordering of the filtered product list.
type SortOption string

const (
	SortFeatured     SortOption = "featured"
	SortNewest       SortOption = "newest"
	SortPriceLowHigh SortOption = "price-low-high"
	SortPriceHighLow SortOption = "price-high-low"
	SortTopRated     SortOption = "top-rated"
	SortBestSelling  SortOption = "best-selling"
)

// SortOptions lists every supported option, default first.
var SortOptions = []SortOption{
	SortFeatured,
	SortNewest,
	SortPriceLowHigh,
	SortPriceHighLow,
	SortTopRated,
	SortBestSelling,
}

// ParseSortOption maps s to a SortOption. Unknown values yield SortFeatured
// and false.
func ParseSortOption(s string) (SortOption, bool) {
	opt := SortOption(s)
	if slices.Contains(SortOptions, opt) {
		return opt, true
	}
	return SortFeatured, false
}

// flagFirst orders products with the flag before the rest and keeps catalog
// order otherwise.
func flagFirst(flag func(product.Product) bool) func(a, b product.Product) int {
	return func(a, b product.Product) int {
		fa, fb := flag(a), flag(b)
		switch {
		case fa == fb:
			return 0
		case fa:
			return -1
		default:
			return 1
		}
	}
}

func comparator(opt SortOption) func(a, b product.Product) int {
	switch opt {
	case SortPriceLowHigh:
		return func(a, b product.Product) int {
			return a.EffectivePrice().Cmp(b.EffectivePrice())
		}
	case SortPriceHighLow:
		return func(a, b product.Product) int {
			return b.EffectivePrice().Cmp(a.EffectivePrice())
		}
	case SortTopRated:
		return func(a, b product.Product) int {
			return b.Rating.Cmp(a.Rating)
		}
	case SortBestSelling:
		return func(a, b product.Product) int {
			return cmp.Compare(b.ReviewCount, a.ReviewCount)
		}
	case SortNewest:
		return flagFirst(func(p product.Product) bool { return p.IsNew })
	default:
		return flagFirst(func(p product.Product) bool { return p.IsFeatured })
	}
}

// Sort orders products in place. Every ordering is stable: ties keep their
// relative input order, and featured/newest are plain partitions without a
// secondary key.
func Sort(products []product.Product, opt SortOption) {
	slices.SortStableFunc(products, comparator(opt))
}
