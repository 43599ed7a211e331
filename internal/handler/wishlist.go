package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/jsonx"
)

func writeWishlist(w http.ResponseWriter, items []string) error {
	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		jsonx.Strings(e, items)
		e.FieldStart("count")
		e.Int(len(items))
		e.ObjEnd()
	})
}

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	return writeWishlist(w, s.Wishlist.Items())
}

// addToWishlist only accepts products that exist in the catalog.
func (h *Handler) addToWishlist(w http.ResponseWriter, r *http.Request) error {
	id, err := decodeField(w, r, "productId")
	if err != nil {
		return err
	}
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	if _, err := h.catalog.GetByID(r.Context(), id); err != nil {
		return err
	}
	s.Wishlist.Add(r.Context(), id)
	return writeWishlist(w, s.Wishlist.Items())
}

func (h *Handler) removeFromWishlist(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	s.Wishlist.Remove(r.Context(), r.PathValue("productId"))
	return writeWishlist(w, s.Wishlist.Items())
}

func (h *Handler) clearWishlist(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}
	s.Wishlist.Clear(r.Context())
	return writeWishlist(w, s.Wishlist.Items())
}
