package browse

import (
	"fmt"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	propSizes       = []string{"S", "M", "L"}
	propCollections = []string{"essentials", "outerwear"}
)

func genProduct() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 500),
		gen.IntRange(0, 2),
		gen.IntRange(0, 1),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(0, 50),
	).Map(func(v []any) product.Product {
		return product.Product{
			Price:       decimal.NewFromInt(int64(v[0].(int))),
			Sizes:       []string{propSizes[v[1].(int)]},
			Collection:  propCollections[v[2].(int)],
			InStock:     v[3].(bool),
			IsFeatured:  v[4].(bool),
			IsNew:       !v[4].(bool),
			Rating:      decimal.New(int64(v[5].(int)), -1),
			ReviewCount: v[5].(int) * 3,
		}
	})
}

func genCatalog() gopter.Gen {
	return gen.SliceOf(genProduct()).Map(func(ps []product.Product) []product.Product {
		for i := range ps {
			ps[i].ID = fmt.Sprintf("p%d", i)
		}
		return ps
	})
}

func genState() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 250),
		gen.IntRange(250, 600),
		gen.SliceOf(gen.IntRange(0, len(propSizes)-1)),
		gen.Bool(),
		gen.IntRange(0, len(SortOptions)-1),
	).Map(func(v []any) FilterState {
		var sizes []string
		for _, i := range v[2].([]int) {
			sizes = append(sizes, propSizes[i])
		}
		return FilterState{
			PriceMin: decimal.NewFromInt(int64(v[0].(int))),
			PriceMax: decimal.NewFromInt(int64(v[1].(int))),
			Sizes:    sizes,
			InStock:  v[3].(bool),
			Sort:     SortOptions[v[4].(int)],
		}
	})
}

func TestBrowseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("filtering is idempotent", prop.ForAll(
		func(catalog []product.Product, st FilterState) bool {
			once := Apply(catalog, st)
			twice := Apply(once, st)
			return slices.Equal(ids(once), ids(twice))
		},
		genCatalog(),
		genState(),
	))

	properties.Property("result is a subset of the catalog", prop.ForAll(
		func(catalog []product.Product, st FilterState) bool {
			all := ids(catalog)
			for _, id := range ids(Apply(catalog, st)) {
				if !slices.Contains(all, id) {
					return false
				}
			}
			return true
		},
		genCatalog(),
		genState(),
	))

	properties.Property("price orders reverse each other without ties", prop.ForAll(
		func(prices []int) bool {
			slices.Sort(prices)
			prices = slices.Compact(prices)
			catalog := make([]product.Product, len(prices))
			for i := range prices {
				// Interleave so the input is not already sorted.
				j := (i * 7) % max(len(prices), 1)
				catalog[i] = product.Product{ID: fmt.Sprintf("p%d", i), Price: decimal.NewFromInt(int64(prices[j]))}
			}
			if hasDuplicatePrices(catalog) {
				return true
			}

			st := NewFilterState(catalog)
			st.Sort = SortPriceLowHigh
			asc := ids(Apply(catalog, st))
			st.Sort = SortPriceHighLow
			desc := ids(Apply(catalog, st))
			slices.Reverse(desc)
			return slices.Equal(asc, desc)
		},
		gen.SliceOf(gen.IntRange(1, 1000)),
	))

	properties.TestingRun(t)
}

func hasDuplicatePrices(catalog []product.Product) bool {
	seen := make(map[string]bool, len(catalog))
	for _, p := range catalog {
		k := p.Price.String()
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}
