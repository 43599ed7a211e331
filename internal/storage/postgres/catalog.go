package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, slug, name, description, price, sale_price, images, colors, sizes,
		collection, in_stock, inventory, is_new, is_featured, is_sale, rating, review_count`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY position, id`

	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listCollectionsSQL = `SELECT id, name, slug, description, image FROM collections ORDER BY position, id`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug, name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, sale_price = EXCLUDED.sale_price, images = EXCLUDED.images,
			colors = EXCLUDED.colors, sizes = EXCLUDED.sizes, collection = EXCLUDED.collection,
			in_stock = EXCLUDED.in_stock, inventory = EXCLUDED.inventory, is_new = EXCLUDED.is_new,
			is_featured = EXCLUDED.is_featured, is_sale = EXCLUDED.is_sale, rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count, position = EXCLUDED.position`

	upsertCollectionSQL = `INSERT INTO collections (id, name, slug, description, image, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, slug = EXCLUDED.slug, description = EXCLUDED.description,
			image = EXCLUDED.image, position = EXCLUDED.position`
)

var _ product.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements product.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns the catalog in seed order.
func (r *CatalogRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListCollections returns every collection with its products populated.
func (r *CatalogRepository) ListCollections(ctx context.Context) ([]product.Collection, error) {
	rows, err := r.pool.Query(ctx, listCollectionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	collections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Collection, error) {
		var c product.Collection
		err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning collections: %w", err)
	}

	products, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return product.PopulateCollections(collections, products), nil
}

func (r *CatalogRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

func (r *CatalogRepository) getOne(ctx context.Context, query, arg string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", arg, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", arg, err)
	}
	return &p, nil
}

// Seed upserts collections and products in one transaction. Slice order
// becomes the listing order.
func (r *CatalogRepository) Seed(ctx context.Context, products []product.Product, collections []product.Collection) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, c := range collections {
			batch.Queue(upsertCollectionSQL, c.ID, c.Name, c.Slug, c.Description, c.Image, i)
		}
		for i, p := range products {
			batch.Queue(upsertProductSQL,
				p.ID, p.Slug, p.Name, p.Description, p.Price, p.SalePrice,
				nonNil(p.Images), nonNil(p.Colors), nonNil(p.Sizes),
				p.Collection, p.InStock, p.Inventory, p.IsNew, p.IsFeatured, p.IsSale,
				p.Rating, p.ReviewCount, i,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		return nil
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &p.Description, &p.Price, &p.SalePrice,
		&p.Images, &p.Colors, &p.Sizes, &p.Collection, &p.InStock, &p.Inventory,
		&p.IsNew, &p.IsFeatured, &p.IsSale, &p.Rating, &p.ReviewCount,
	)
	return p, err
}
