package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product or collection does not exist.
var ErrNotFound = errors.New("product not found")

var (
	zero = decimal.Zero
	five = decimal.NewFromInt(5)
)

// Product represents a catalog item available for purchase. Products are
// owned by the catalog provider and are read-only to the rest of the system.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Price       decimal.Decimal
	SalePrice   decimal.NullDecimal
	Images      []string
	Colors      []string
	Sizes       []string
	Collection  string
	InStock     bool
	Inventory   *int
	IsNew       bool
	IsFeatured  bool
	IsSale      bool
	Rating      decimal.Decimal
	ReviewCount int
}

// EffectivePrice returns the sale price when one is set, otherwise the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// FirstImage returns the primary image URI, or "" for a product without images.
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// InvalidProductError reports a catalog record that breaks a data model constraint.
type InvalidProductError struct {
	ProductID string
	Reason    string
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("invalid product %q: %s", e.ProductID, e.Reason)
}

// Validate checks the constraints every catalog record must satisfy.
func (p Product) Validate() error {
	invalid := func(reason string) error {
		return &InvalidProductError{ProductID: p.ID, Reason: reason}
	}
	switch {
	case p.ID == "":
		return invalid("id is required")
	case p.Slug == "":
		return invalid("slug is required")
	case !p.Price.IsPositive():
		return invalid("price must be positive")
	case p.SalePrice.Valid && !p.SalePrice.Decimal.LessThan(p.Price):
		return invalid("sale price must be lower than price")
	case p.SalePrice.Valid && p.SalePrice.Decimal.IsNegative():
		return invalid("sale price must not be negative")
	case len(p.Images) == 0:
		return invalid("at least one image is required")
	case p.Inventory != nil && *p.Inventory < 0:
		return invalid("inventory must not be negative")
	case p.Rating.LessThan(zero) || p.Rating.GreaterThan(five):
		return invalid("rating must be within [0, 5]")
	case p.ReviewCount < 0:
		return invalid("review count must not be negative")
	}
	return nil
}

// Collection groups products under a named, URL-addressable slug.
type Collection struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Image       string
	Products    []Product
}

// PopulateCollections fills each collection's Products with the catalog
// entries referencing its slug, keeping catalog order. The input collections
// are not modified.
func PopulateCollections(collections []Collection, products []Product) []Collection {
	out := make([]Collection, len(collections))
	idx := make(map[string]int, len(collections))
	for i, c := range collections {
		c.Products = nil
		out[i] = c
		idx[c.Slug] = i
	}
	for _, p := range products {
		if i, ok := idx[p.Collection]; ok {
			out[i].Products = append(out[i].Products, p)
		}
	}
	return out
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
