package order

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
)

type recordingSink struct {
	mu     sync.Mutex
	orders []Order
	err    error
	block  chan struct{}
}

func (s *recordingSink) Submit(ctx context.Context, o Order) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return s.err
}

func (s *recordingSink) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Order(nil), s.orders...)
}

func validRequest() Request {
	return Request{
		ShippingAddress: Address{
			Name:       "Ada Lovelace",
			Line1:      "1 Concrete Way",
			City:       "London",
			PostalCode: "N1 9GU",
			Country:    "GB",
		},
		PaymentMethodDisplay: "Visa •••• 4242",
	}
}

func newCart(t *testing.T) *cart.Store {
	t.Helper()
	return cart.NewStore(context.Background(), cart.Config{
		Promotions: promotion.DefaultTable(),
		Rates:      shipping.DefaultTable(),
		Logger:     zaptest.NewLogger(t),
	})
}

func fillCart(t *testing.T, c *cart.Store) {
	t.Helper()
	ctx := context.Background()
	p := product.Product{
		ID:        "p1",
		Slug:      "raw-tee",
		Name:      "Raw Tee",
		Price:     decimal.RequireFromString("60"),
		SalePrice: decimal.NewNullDecimal(decimal.RequireFromString("50")),
		Images:    []string{"/tee.jpg"},
		InStock:   true,
	}
	_, err := c.AddItem(ctx, p, "M", "black", 2)
	require.NoError(t, err)
	_, err = c.ApplyPromotion(ctx, "WELCOME10")
	require.NoError(t, err)
}

func TestService_Checkout(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	recorder := tracetest.NewSpanRecorder()
	placedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(sink, Options{
		Logger:         zaptest.NewLogger(t),
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		Now:            func() time.Time { return placedAt },
	})

	c := newCart(t)
	fillCart(t, c)

	o, err := svc.Checkout(ctx, c, validRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx))

	assert.True(t, strings.HasPrefix(o.Number, "BRU-"))
	assert.Equal(t, "WELCOME10", o.PromotionCode)
	assert.Equal(t, shipping.DefaultMethod, o.ShippingMethod)
	assert.Equal(t, placedAt, o.PlacedAt)
	require.Len(t, o.Items, 1)
	assert.True(t, decimal.RequireFromString("50").Equal(o.Items[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("100").Equal(o.Items[0].LineTotal))
	assert.True(t, decimal.RequireFromString("101.99").Equal(o.Totals.Total))

	submitted := sink.Orders()
	require.Len(t, submitted, 1)
	assert.Equal(t, o.Number, submitted[0].Number)

	snap := c.Snapshot()
	assert.Empty(t, snap.State.Items)
	assert.Nil(t, snap.State.Promotion)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "order.Checkout", spans[0].Name())
}

func TestService_CheckoutRejects(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&recordingSink{}, Options{Logger: zaptest.NewLogger(t)})

	t.Run("EmptyCart", func(t *testing.T) {
		_, err := svc.Checkout(ctx, newCart(t), validRequest())
		require.ErrorIs(t, err, ErrEmptyCart)
	})

	tests := []struct {
		name  string
		field string
		edit  func(r *Request)
	}{
		{name: "Name", field: "shippingAddress.name", edit: func(r *Request) { r.ShippingAddress.Name = " " }},
		{name: "City", field: "shippingAddress.city", edit: func(r *Request) { r.ShippingAddress.City = "" }},
		{name: "Payment", field: "paymentMethod", edit: func(r *Request) { r.PaymentMethodDisplay = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCart(t)
			fillCart(t, c)
			req := validRequest()
			tt.edit(&req)

			_, err := svc.Checkout(ctx, c, req)
			var invalid *InvalidRequestError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.NotEmpty(t, c.Snapshot().State.Items)
		})
	}
}

func TestService_SinkFailureIsNotReturned(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{err: errors.New("order service down")}
	svc := NewService(sink, Options{Logger: zaptest.NewLogger(t)})

	c := newCart(t)
	fillCart(t, c)
	_, err := svc.Checkout(ctx, c, validRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx))
	assert.Len(t, sink.Orders(), 1)
	assert.Empty(t, c.Snapshot().State.Items)
}

func TestService_CloseTimeout(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	svc := NewService(sink, Options{Logger: zaptest.NewLogger(t)})

	c := newCart(t)
	fillCart(t, c)
	_, err := svc.Checkout(context.Background(), c, validRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, svc.Close(ctx), context.DeadlineExceeded)

	close(sink.block)
	require.NoError(t, svc.Close(context.Background()))
}
