package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/jsonx"
)

const insertOrderSQL = `INSERT INTO orders (number, items, subtotal, discount, shipping, tax, total,
		promotion_code, shipping_method, shipping_address, payment_method, placed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (number) DO NOTHING`

var _ order.Sink = (*OrderSink)(nil)

// OrderSink records placed orders in the orders table. Items and the
// address are stored as JSONB.
type OrderSink struct {
	pool *pgxpool.Pool
}

func NewOrderSink(pool *pgxpool.Pool) *OrderSink {
	return &OrderSink{pool: pool}
}

func (s *OrderSink) Submit(ctx context.Context, o order.Order) error {
	t := o.Totals
	_, err := s.pool.Exec(ctx, insertOrderSQL,
		o.Number, encodeItems(o.Items), t.Subtotal, t.Discount, t.Shipping, t.Tax, t.Total,
		o.PromotionCode, o.ShippingMethod, encodeAddress(o.ShippingAddress),
		o.PaymentMethodDisplay, o.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.Number, err)
	}
	return nil
}

func encodeItems(items []order.Item) string {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("size")
		e.Str(it.Size)
		e.FieldStart("color")
		e.Str(it.Color)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("unitPrice")
		jsonx.Decimal(&e, it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("lineTotal")
		jsonx.Decimal(&e, it.LineTotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.String()
}

func encodeAddress(a order.Address) string {
	var e jx.Encoder
	e.ObjStart()
	for _, f := range []struct{ k, v string }{
		{"name", a.Name},
		{"line1", a.Line1},
		{"line2", a.Line2},
		{"city", a.City},
		{"region", a.Region},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()
	return e.String()
}
