package browse

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Facets are read-only facts about a catalog used to build filter controls.
type Facets struct {
	// Sizes, Colors and Collections are unique, in first-seen order.
	Sizes       []string
	Colors      []string
	Collections []string
	// PriceMin and PriceMax bound the effective prices. Both are zero for an
	// empty catalog.
	PriceMin decimal.Decimal
	PriceMax decimal.Decimal
}

type vocab struct {
	seen  map[string]struct{}
	items []string
}

func (v *vocab) add(values ...string) {
	for _, s := range values {
		if _, ok := v.seen[s]; ok {
			continue
		}
		v.seen[s] = struct{}{}
		v.items = append(v.items, s)
	}
}

func newVocab() *vocab {
	return &vocab{seen: make(map[string]struct{})}
}

// ComputeFacets scans the catalog once.
func ComputeFacets(catalog []product.Product) Facets {
	var (
		sizes       = newVocab()
		colors      = newVocab()
		collections = newVocab()
		f           Facets
	)
	for i, p := range catalog {
		sizes.add(p.Sizes...)
		colors.add(p.Colors...)
		if p.Collection != "" {
			collections.add(p.Collection)
		}

		price := p.EffectivePrice()
		if i == 0 || price.LessThan(f.PriceMin) {
			f.PriceMin = price
		}
		if i == 0 || price.GreaterThan(f.PriceMax) {
			f.PriceMax = price
		}
	}
	f.Sizes = sizes.items
	f.Colors = colors.items
	f.Collections = collections.items
	return f
}
