package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cart"
)

// ErrEmptyCart is returned when checking out a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// InvalidRequestError indicates a required checkout field is missing.
type InvalidRequestError struct {
	Field string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Request holds the checkout input not already in the cart.
type Request struct {
	ShippingAddress      Address
	PaymentMethodDisplay string
}

// Validate reports the first missing required field.
func (r Request) Validate() error {
	a := r.ShippingAddress
	for _, f := range []struct {
		name, value string
	}{
		{"shippingAddress.name", a.Name},
		{"shippingAddress.line1", a.Line1},
		{"shippingAddress.city", a.City},
		{"shippingAddress.postalCode", a.PostalCode},
		{"shippingAddress.country", a.Country},
		{"paymentMethod", r.PaymentMethodDisplay},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &InvalidRequestError{Field: f.name}
		}
	}
	return nil
}

// Options configures a Service.
type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	// SubmitTimeout bounds each background submission. Zero means 30s.
	SubmitTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service turns a cart into an order and hands it to a Sink.
type Service struct {
	sink    Sink
	lg      *zap.Logger
	tracer  trace.Tracer
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewService creates an order Service.
func NewService(sink Sink, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = noop.NewTracerProvider()
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sink:    sink,
		lg:      opts.Logger,
		tracer:  opts.TracerProvider.Tracer("storefront/order"),
		timeout: opts.SubmitTimeout,
		now:     opts.Now,
	}
}

// Checkout validates req, takes the cart contents, clears the cart and
// submits the order in the background. The returned Order is final; the
// outcome of the submission is only logged.
func (s *Service) Checkout(ctx context.Context, c *cart.Store, req Request) (_ Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return Order{}, err
	}
	if c.Snapshot().Totals.TotalItems == 0 {
		return Order{}, ErrEmptyCart
	}

	snap := c.Take(ctx)
	if len(snap.State.Items) == 0 {
		// Emptied concurrently after the check above.
		return Order{}, ErrEmptyCart
	}

	o := Order{
		Number:               NewNumber(),
		Items:                itemsFrom(snap.State.Items),
		Totals:               snap.Totals,
		ShippingMethod:       snap.State.ShippingMethod,
		ShippingAddress:      req.ShippingAddress,
		PaymentMethodDisplay: req.PaymentMethodDisplay,
		PlacedAt:             s.now().UTC(),
	}
	if p := snap.State.Promotion; p != nil {
		o.PromotionCode = p.Code
	}
	span.SetAttributes(
		attribute.String("order.number", o.Number),
		attribute.Int("order.items", snap.Totals.TotalItems),
		attribute.String("order.total", o.Totals.Total.StringFixed(2)),
	)

	s.dispatch(ctx, o)
	return o, nil
}

func (s *Service) dispatch(ctx context.Context, o Order) {
	// Detached from the request: the shopper does not wait for the sink.
	ctx = context.WithoutCancel(ctx)
	lg := s.lg.With(zap.String("order", o.Number))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := s.sink.Submit(ctx, o); err != nil {
			lg.Error("Submit order", zap.Error(err))
			return
		}
		lg.Info("Order submitted", zap.String("total", o.Totals.Total.StringFixed(2)))
	}()
}

// Close waits for in-flight submissions or until ctx is done.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for order submissions")
	}
}
