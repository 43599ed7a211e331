// Package handler exposes the storefront core over HTTP/JSON. Handlers only
// translate requests into store operations and map domain errors to status
// codes; every business rule lives in the core packages.
package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const (
	// SessionHeader carries the session id. Clients that cannot keep
	// cookies echo it back from the first response.
	SessionHeader = "X-Session-ID"
	sessionCookie = "sid"
	cookieMaxAge  = 30 * 24 * 60 * 60
)

// Config holds the Handler dependencies.
type Config struct {
	Catalog  product.Repository
	Rates    *shipping.Table
	Sessions *session.Registry
	Orders   *order.Service
	// PromotionLimiter throttles promotion attempts per session. Optional.
	PromotionLimiter *httpmiddleware.RateLimiter
	MeterProvider    metric.MeterProvider
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// Heartbeat is the SSE keep-alive interval. Zero means 15s.
	Heartbeat time.Duration
}

// Handler serves the /api routes.
type Handler struct {
	catalog   product.Repository
	rates     *shipping.Table
	sessions  *session.Registry
	orders    *order.Service
	limiter   *httpmiddleware.RateLimiter
	secure    bool
	heartbeat time.Duration

	// streamsDone is closed by CloseStreams.
	streamsDone  chan struct{}
	closeStreams sync.Once

	mutations metric.Int64Counter
	promos    metric.Int64Counter
	checkouts metric.Int64Counter
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = noop.NewMeterProvider()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	h := &Handler{
		catalog:   cfg.Catalog,
		rates:     cfg.Rates,
		sessions:  cfg.Sessions,
		orders:    cfg.Orders,
		limiter:   cfg.PromotionLimiter,
		secure:    cfg.SecureCookie,
		heartbeat: cfg.Heartbeat,

		streamsDone: make(chan struct{}),
	}

	meter := cfg.MeterProvider.Meter("github.com/xenking/storefront/internal/handler")
	var err error
	if h.mutations, err = meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart mutations by operation"),
	); err != nil {
		return nil, errors.Wrap(err, "cart mutations counter")
	}
	if h.promos, err = meter.Int64Counter("storefront.promotion.applied",
		metric.WithDescription("Promotion codes applied"),
	); err != nil {
		return nil, errors.Wrap(err, "promotion counter")
	}
	if h.checkouts, err = meter.Int64Counter("storefront.checkout.orders",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout counter")
	}
	return h, nil
}

// CloseStreams ends every open cart event stream and makes new ones return
// right after the initial snapshot. http.Server.Shutdown does not cancel
// request contexts, so call it from Server.RegisterOnShutdown.
func (h *Handler) CloseStreams() {
	h.closeStreams.Do(func() { close(h.streamsDone) })
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/products", h.handle(h.listProducts))
	mux.Handle("GET /api/products/{slug}", h.handle(h.getProduct))
	mux.Handle("GET /api/collections", h.handle(h.listCollections))
	mux.Handle("GET /api/shipping-rates", h.handle(h.listShippingRates))

	mux.Handle("GET /api/cart", h.handle(h.getCart))
	mux.Handle("DELETE /api/cart", h.handle(h.clearCart))
	mux.Handle("POST /api/cart/items", h.handle(h.addItem))
	mux.Handle("PATCH /api/cart/items", h.handle(h.updateItem))
	mux.Handle("DELETE /api/cart/items", h.handle(h.removeItem))
	mux.Handle("PUT /api/cart/shipping", h.handle(h.setShipping))
	mux.Handle("POST /api/cart/promotion", h.limit(h.handle(h.applyPromotion)))
	mux.Handle("DELETE /api/cart/promotion", h.handle(h.removePromotion))
	mux.Handle("PUT /api/cart/tax", h.handle(h.setTaxRate))
	mux.Handle("GET /api/cart/events", h.handle(h.cartEvents))

	mux.Handle("GET /api/wishlist", h.handle(h.getWishlist))
	mux.Handle("POST /api/wishlist", h.handle(h.addToWishlist))
	mux.Handle("DELETE /api/wishlist", h.handle(h.clearWishlist))
	mux.Handle("DELETE /api/wishlist/{productId}", h.handle(h.removeFromWishlist))

	mux.Handle("POST /api/checkout", h.handle(h.checkout))
}

func (h *Handler) limit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Middleware()(next)
}

// apiFunc is a route handler that reports failures as errors.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) handle(fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	})
}

// RateLimitKey keys the promotion limiter by session, falling back to the
// client address for requests without a valid session.
func RateLimitKey(r *http.Request) string {
	if id := requestSessionID(r); session.ValidID(id) {
		return "session:" + id
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

func requestSessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// session resolves the caller's session, starting a new one when the
// request carries no usable id. The id is echoed in SessionHeader.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	id := requestSessionID(r)
	if !session.ValidID(id) {
		id = session.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   cookieMaxAge,
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
		zctx.From(r.Context()).Debug("Issued session", zap.String("session", id))
	}
	w.Header().Set(SessionHeader, id)

	s, release, err := h.sessions.Acquire(r.Context(), id)
	if err != nil {
		return nil, err
	}
	// The request context is canceled once the handler returns.
	context.AfterFunc(r.Context(), release)
	return s, nil
}

func (h *Handler) countMutation(r *http.Request, op string) {
	h.mutations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("op", op)))
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "malformed request: " + e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &badRequestError{err: err}
}

// errorStatus maps a domain error to a status code and a stable error code.
// ok is false for unexpected errors.
func errorStatus(err error) (status int, code string, ok bool) {
	var (
		badReq  *badRequestError
		invalid *order.InvalidRequestError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, "bad_request", true
	case errors.Is(err, session.ErrInvalidID):
		return http.StatusBadRequest, "invalid_session", true
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product_not_found", true
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found", true
	case errors.Is(err, cart.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock", true
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusConflict, "empty_cart", true
	case errors.Is(err, promotion.ErrInvalidPromotion):
		return http.StatusUnprocessableEntity, "invalid_promotion", true
	case errors.Is(err, promotion.ErrMinimumNotMet):
		return http.StatusUnprocessableEntity, "minimum_not_met", true
	case errors.Is(err, promotion.ErrNotEligible):
		return http.StatusUnprocessableEntity, "not_eligible", true
	case errors.Is(err, shipping.ErrUnknownMethod):
		return http.StatusUnprocessableEntity, "unknown_shipping_method", true
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrMissingProductID),
		errors.Is(err, cart.ErrInvalidTaxRate),
		errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "invalid_request", true
	}
	return http.StatusInternalServerError, "internal", false
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, ok := errorStatus(err)
	if !ok {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, status, code, "internal server error")
		return
	}
	httpmiddleware.WriteError(w, status, code, err.Error())
}
