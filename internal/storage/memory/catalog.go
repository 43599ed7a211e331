package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var _ product.Repository = (*Catalog)(nil)

type catalogJSON struct {
	Collections []collectionJSON `json:"collections"`
	Products    []productJSON    `json:"products"`
}

type collectionJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type productJSON struct {
	ID          string              `json:"id"`
	Slug        string              `json:"slug"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"salePrice"`
	Images      []string            `json:"images"`
	Colors      []string            `json:"colors"`
	Sizes       []string            `json:"sizes"`
	Collection  string              `json:"collection"`
	InStock     bool                `json:"inStock"`
	Inventory   *int                `json:"inventory"`
	IsNew       bool                `json:"isNew"`
	IsFeatured  bool                `json:"isFeatured"`
	IsSale      bool                `json:"isSale"`
	Rating      decimal.Decimal     `json:"rating"`
	ReviewCount int                 `json:"reviewCount"`
}

func (p productJSON) domain() product.Product {
	return product.Product{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		SalePrice:   p.SalePrice,
		Images:      p.Images,
		Colors:      p.Colors,
		Sizes:       p.Sizes,
		Collection:  p.Collection,
		InStock:     p.InStock,
		Inventory:   p.Inventory,
		IsNew:       p.IsNew,
		IsFeatured:  p.IsFeatured,
		IsSale:      p.IsSale,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
	}
}

// LoadCatalogFile reads a catalog seed file. Files ending in ".gz" are
// decompressed on the fly.
func LoadCatalogFile(path string) ([]product.Product, []product.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return DecodeCatalog(r)
}

// DecodeCatalog parses catalog JSON and validates every product.
func DecodeCatalog(r io.Reader) ([]product.Product, []product.Collection, error) {
	var raw catalogJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, errors.Wrap(err, "decode catalog")
	}

	products := make([]product.Product, len(raw.Products))
	for i, p := range raw.Products {
		products[i] = p.domain()
		if err := products[i].Validate(); err != nil {
			return nil, nil, err
		}
	}

	collections := make([]product.Collection, len(raw.Collections))
	for i, c := range raw.Collections {
		collections[i] = product.Collection{
			ID:          c.ID,
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			Image:       c.Image,
		}
	}
	return products, collections, nil
}

// Catalog is a read-only, in-memory product.Repository.
type Catalog struct {
	products    []product.Product
	collections []product.Collection
	bySlug      map[string]int
	byID        map[string]int
}

// NewCatalog indexes the given products and collections. Product ids and
// slugs must be unique.
func NewCatalog(products []product.Product, collections []product.Collection) (*Catalog, error) {
	c := &Catalog{
		products:    products,
		collections: collections,
		bySlug:      make(map[string]int, len(products)),
		byID:        make(map[string]int, len(products)),
	}
	for i, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			return nil, errors.Errorf("duplicate product id %q", p.ID)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, errors.Errorf("duplicate product slug %q", p.Slug)
		}
		c.byID[p.ID] = i
		c.bySlug[p.Slug] = i
	}
	return c, nil
}

// List returns the catalog in seed order.
func (c *Catalog) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

// ListCollections returns every collection with its products populated.
func (c *Catalog) ListCollections(context.Context) ([]product.Collection, error) {
	return product.PopulateCollections(c.collections, c.products), nil
}

func (c *Catalog) GetBySlug(_ context.Context, slug string) (*product.Product, error) {
	i, ok := c.bySlug[slug]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := c.products[i]
	return &p, nil
}

func (c *Catalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := c.products[i]
	return &p, nil
}
