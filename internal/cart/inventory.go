package cart

import (
	"github.com/xenking/storefront/internal/domain/product"
)

// DefaultLineCap is the per-line quantity ceiling for in-stock products.
const DefaultLineCap = 10

// InventoryPolicy decides how many units of a product a single cart line
// may hold. A cap of zero means the product cannot be added.
type InventoryPolicy interface {
	Cap(p product.Product) int
}

// FixedCapPolicy allows a fixed number of units for any in-stock product and
// none for out-of-stock ones. It does not consult inventory counts.
type FixedCapPolicy struct {
	InStock int
}

// Cap returns InStock, or DefaultLineCap when InStock is not positive.
func (f FixedCapPolicy) Cap(p product.Product) int {
	if !p.InStock {
		return 0
	}
	if f.InStock <= 0 {
		return DefaultLineCap
	}
	return f.InStock
}

// CountedPolicy uses the product's inventory count when the catalog carries
// one, bounded by Ceiling. Products without a count fall back to Ceiling.
type CountedPolicy struct {
	Ceiling int
}

// Cap returns the smaller of the inventory count and Ceiling. A zero count
// yields zero.
func (c CountedPolicy) Cap(p product.Product) int {
	ceiling := c.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultLineCap
	}
	if !p.InStock {
		return 0
	}
	if p.Inventory == nil {
		return ceiling
	}
	return min(*p.Inventory, ceiling)
}
