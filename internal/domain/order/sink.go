package order

import (
	"context"

	"go.uber.org/zap"
)

var _ Sink = (*LogSink)(nil)

// LogSink writes orders to the log. It stands in for the external order
// service in development.
type LogSink struct {
	lg *zap.Logger
}

func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

func (s *LogSink) Submit(_ context.Context, o Order) error {
	s.lg.Info("Order placed",
		zap.String("number", o.Number),
		zap.Int("lines", len(o.Items)),
		zap.Int("items", o.Totals.TotalItems),
		zap.String("subtotal", o.Totals.Subtotal.StringFixed(2)),
		zap.String("discount", o.Totals.Discount.StringFixed(2)),
		zap.String("shipping", o.Totals.Shipping.StringFixed(2)),
		zap.String("tax", o.Totals.Tax.StringFixed(2)),
		zap.String("total", o.Totals.Total.StringFixed(2)),
		zap.String("promotion", o.PromotionCode),
		zap.String("country", o.ShippingAddress.Country),
		zap.String("payment", o.PaymentMethodDisplay),
		zap.Time("placed_at", o.PlacedAt),
	)
	return nil
}
