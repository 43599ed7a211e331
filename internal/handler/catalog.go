package handler

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/browse"
)

// applyQuery replays the products query string onto the engine, one control
// at a time. Repeated collection, size and color values select several.
func applyQuery(e *browse.Engine, q url.Values) error {
	for _, c := range distinct(q["collection"]) {
		e.ToggleCollection(c)
	}
	for _, s := range distinct(q["size"]) {
		e.ToggleSize(s)
	}
	for _, c := range distinct(q["color"]) {
		e.ToggleColor(c)
	}

	if q.Has("minPrice") || q.Has("maxPrice") {
		f := e.Facets()
		lo, err := decimalParam(q, "minPrice", f.PriceMin)
		if err != nil {
			return err
		}
		hi, err := decimalParam(q, "maxPrice", f.PriceMax)
		if err != nil {
			return err
		}
		e.SetPriceRange(lo, hi)
	}

	for name, set := range map[string]func(bool){
		"onSale":  e.SetOnSale,
		"inStock": e.SetInStock,
		"new":     e.SetNewArrivals,
	} {
		if !q.Has(name) {
			continue
		}
		v, err := strconv.ParseBool(q.Get(name))
		if err != nil {
			return badRequest(errors.Errorf("%s: %q is not a boolean", name, q.Get(name)))
		}
		set(v)
	}

	// An empty value leaves the filter unset.
	if q.Get("rating") != "" {
		r, err := decimalParam(q, "rating", decimal.Zero)
		if err != nil {
			return err
		}
		if r.IsNegative() || r.GreaterThan(maxRating) {
			return badRequest(errors.Errorf("rating: %s is outside [0, %s]", r, maxRating))
		}
		e.SetMinRating(decimal.NewNullDecimal(r))
	}

	// Unknown sort keys fall back to featured.
	opt, _ := browse.ParseSortOption(q.Get("sort"))
	e.SetSort(opt)
	return nil
}

var maxRating = decimal.NewFromInt(5)

func distinct(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func decimalParam(q url.Values, name string, def decimal.Decimal) (decimal.Decimal, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, badRequest(errors.Errorf("%s: %q is not a number", name, s))
	}
	return d, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	catalog, err := h.catalog.List(r.Context())
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	engine := browse.NewEngine(catalog)
	if err := applyQuery(engine, r.URL.Query()); err != nil {
		return err
	}
	products := engine.Products()

	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("products")
		encodeProducts(e, products)
		e.FieldStart("count")
		e.Int(len(products))
		e.FieldStart("facets")
		encodeFacets(e, engine.Facets())
		e.FieldStart("filters")
		encodeFilterState(e, engine.State())
		e.FieldStart("activeFilters")
		e.Int(engine.ActiveFilterCount())
		e.FieldStart("sortOptions")
		e.ArrStart()
		for _, opt := range browse.SortOptions {
			e.Str(string(opt))
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	p, err := h.catalog.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) error {
	collections, err := h.catalog.ListCollections(r.Context())
	if err != nil {
		return errors.Wrap(err, "list collections")
	}
	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range collections {
			encodeCollection(e, c)
		}
		e.ArrEnd()
	})
}

func (h *Handler) listShippingRates(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, rate := range h.rates.All() {
			encodeRate(e, rate)
		}
		e.ArrEnd()
	})
}
