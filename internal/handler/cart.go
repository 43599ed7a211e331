package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront/internal/cart"
)

func writeCart(w http.ResponseWriter, snap cart.Snapshot) error {
	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, snap)
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	return writeCart(w, s.Cart.Snapshot())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	s.Cart.ClearCart(r.Context())
	h.countMutation(r, "clear")
	return writeCart(w, s.Cart.Snapshot())
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeItemRequest(w, r)
	if err != nil {
		return err
	}
	if req.ProductID == "" {
		return cart.ErrMissingProductID
	}
	if !req.HasQuantity {
		req.Quantity = 1
	}

	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	p, err := h.catalog.GetByID(r.Context(), req.ProductID)
	if err != nil {
		return err
	}
	res, err := s.Cart.AddItem(r.Context(), *p, req.Size, req.Color, req.Quantity)
	if err != nil {
		return err
	}
	h.countMutation(r, "add")

	snap := s.Cart.Snapshot()
	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("clamped")
		e.Bool(res.Clamped)
		e.FieldStart("item")
		encodeCartItem(e, res.Item)
		e.FieldStart("cart")
		encodeCart(e, snap)
		e.ObjEnd()
	})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeItemRequest(w, r)
	if err != nil {
		return err
	}
	if req.ProductID == "" {
		return cart.ErrMissingProductID
	}
	if !req.HasQuantity {
		return badRequest(errors.New("quantity is required"))
	}

	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	if req.variant() {
		err = s.Cart.UpdateItemQuantity(r.Context(), cart.Key{
			ProductID: req.ProductID,
			Size:      req.Size,
			Color:     req.Color,
		}, req.Quantity)
	} else {
		err = s.Cart.UpdateProductQuantity(r.Context(), req.ProductID, req.Quantity)
	}
	if err != nil {
		return err
	}
	h.countMutation(r, "update")
	return writeCart(w, s.Cart.Snapshot())
}

// removeItem deletes one variant line when size or color is given, otherwise
// every line of the product.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	key := cart.Key{ProductID: q.Get("productId"), Size: q.Get("size"), Color: q.Get("color")}
	if key.ProductID == "" {
		return cart.ErrMissingProductID
	}

	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	var removed bool
	if key.Size != "" || key.Color != "" {
		removed = s.Cart.RemoveItem(r.Context(), key)
	} else {
		removed = s.Cart.RemoveProduct(r.Context(), key.ProductID) > 0
	}
	if !removed {
		return cart.ErrItemNotFound
	}
	h.countMutation(r, "remove")
	return writeCart(w, s.Cart.Snapshot())
}

func (h *Handler) setShipping(w http.ResponseWriter, r *http.Request) error {
	method, err := decodeField(w, r, "method")
	if err != nil {
		return err
	}
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	if err := s.Cart.SetShippingMethod(r.Context(), method); err != nil {
		return err
	}
	h.countMutation(r, "shipping")
	return writeCart(w, s.Cart.Snapshot())
}

func (h *Handler) applyPromotion(w http.ResponseWriter, r *http.Request) error {
	code, err := decodeField(w, r, "code")
	if err != nil {
		return err
	}
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	p, err := s.Cart.ApplyPromotion(r.Context(), code)
	if err != nil {
		return err
	}
	h.countMutation(r, "promotion")
	h.promos.Add(r.Context(), 1, metric.WithAttributes(attribute.String("code", p.Code)))
	return writeCart(w, s.Cart.Snapshot())
}

func (h *Handler) removePromotion(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	s.Cart.RemovePromotion(r.Context())
	h.countMutation(r, "promotion_remove")
	return writeCart(w, s.Cart.Snapshot())
}

func (h *Handler) setTaxRate(w http.ResponseWriter, r *http.Request) error {
	rate, err := decodeTaxRate(w, r)
	if err != nil {
		return err
	}
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	if err := s.Cart.UpdateTaxRate(r.Context(), rate); err != nil {
		return err
	}
	h.countMutation(r, "tax")
	return writeCart(w, s.Cart.Snapshot())
}
