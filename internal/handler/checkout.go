package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// checkout places the order and empties the cart. The order sink runs in
// the background, so a 201 only means the order was handed off.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeCheckoutRequest(w, r)
	if err != nil {
		return err
	}
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	o, err := h.orders.Checkout(r.Context(), s.Cart, req)
	if err != nil {
		return err
	}
	h.checkouts.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("shipping_method", o.ShippingMethod),
		attribute.Bool("promotion", o.PromotionCode != ""),
	))
	return writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}
