package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/promotion"
)

const (
	listPromotionsSQL = `SELECT code, discount_type, value, minimum_order, free_shipping, description, eligibility
		FROM promotions WHERE active ORDER BY position, code`

	upsertPromotionSQL = `INSERT INTO promotions
		(code, discount_type, value, minimum_order, free_shipping, description, eligibility, position)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			minimum_order = EXCLUDED.minimum_order, free_shipping = EXCLUDED.free_shipping,
			description = EXCLUDED.description, eligibility = EXCLUDED.eligibility,
			position = EXCLUDED.position, active = TRUE`
)

// PromotionRepository stores the promotion table. The storefront reads it
// once at startup into a promotion.Table.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// List returns the active promotions.
func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.Promotion, error) {
		var (
			p     promotion.Promotion
			dtype string
		)
		err := row.Scan(&p.Code, &dtype, &p.Value, &p.MinimumOrder, &p.FreeShipping, &p.Description, &p.Eligibility)
		p.DiscountType = promotion.DiscountType(dtype)
		return p, err
	})
}

// Table loads the active promotions into a lookup table.
func (r *PromotionRepository) Table(ctx context.Context) (*promotion.Table, error) {
	promos, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return promotion.NewTable(promos...)
}

// Upsert writes promotions in one transaction.
func (r *PromotionRepository) Upsert(ctx context.Context, promos []promotion.Promotion) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, p := range promos {
			batch.Queue(upsertPromotionSQL,
				p.Code, string(p.DiscountType), p.Value, p.MinimumOrder,
				p.FreeShipping, p.Description, p.Eligibility, i,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting promotions: %w", err)
		}
		return nil
	})
}
