package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/browse"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/jsonx"
)

// writeJSON encodes a response body with fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(e.Bytes())
	return err
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("slug")
	e.Str(p.Slug)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	jsonx.Decimal(e, p.Price)
	e.FieldStart("salePrice")
	jsonx.NullDecimal(e, p.SalePrice)
	e.FieldStart("images")
	jsonx.Strings(e, p.Images)
	e.FieldStart("colors")
	jsonx.Strings(e, p.Colors)
	e.FieldStart("sizes")
	jsonx.Strings(e, p.Sizes)
	e.FieldStart("collection")
	e.Str(p.Collection)
	e.FieldStart("inStock")
	e.Bool(p.InStock)
	if p.Inventory != nil {
		e.FieldStart("inventory")
		e.Int(*p.Inventory)
	}
	e.FieldStart("isNew")
	e.Bool(p.IsNew)
	e.FieldStart("isFeatured")
	e.Bool(p.IsFeatured)
	e.FieldStart("isSale")
	e.Bool(p.IsSale)
	e.FieldStart("rating")
	jsonx.Rate(e, p.Rating)
	e.FieldStart("reviewCount")
	e.Int(p.ReviewCount)
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeFacets(e *jx.Encoder, f browse.Facets) {
	e.ObjStart()
	e.FieldStart("sizes")
	jsonx.Strings(e, f.Sizes)
	e.FieldStart("colors")
	jsonx.Strings(e, f.Colors)
	e.FieldStart("collections")
	jsonx.Strings(e, f.Collections)
	e.FieldStart("priceMin")
	jsonx.Decimal(e, f.PriceMin)
	e.FieldStart("priceMax")
	jsonx.Decimal(e, f.PriceMax)
	e.ObjEnd()
}

func encodeFilterState(e *jx.Encoder, st browse.FilterState) {
	e.ObjStart()
	e.FieldStart("collections")
	jsonx.Strings(e, st.Collections)
	e.FieldStart("sizes")
	jsonx.Strings(e, st.Sizes)
	e.FieldStart("colors")
	jsonx.Strings(e, st.Colors)
	e.FieldStart("priceMin")
	jsonx.Decimal(e, st.PriceMin)
	e.FieldStart("priceMax")
	jsonx.Decimal(e, st.PriceMax)
	e.FieldStart("onSale")
	e.Bool(st.OnSale)
	e.FieldStart("inStock")
	e.Bool(st.InStock)
	e.FieldStart("newArrivals")
	e.Bool(st.NewArrivals)
	e.FieldStart("minRating")
	if st.MinRating.Valid {
		jsonx.Rate(e, st.MinRating.Decimal)
	} else {
		e.Null()
	}
	e.FieldStart("sort")
	e.Str(string(st.Sort))
	e.ObjEnd()
}

func encodeCollection(e *jx.Encoder, c product.Collection) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("slug")
	e.Str(c.Slug)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("image")
	e.Str(c.Image)
	e.FieldStart("products")
	encodeProducts(e, c.Products)
	e.ObjEnd()
}

func encodeRate(e *jx.Encoder, r shipping.Rate) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("name")
	e.Str(r.Name)
	e.FieldStart("description")
	e.Str(r.Description)
	e.FieldStart("price")
	jsonx.Decimal(e, r.Price)
	e.FieldStart("estimatedDays")
	e.Str(r.EstimatedDays)
	e.ObjEnd()
}

func encodePromotion(e *jx.Encoder, p promotion.Promotion) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(p.Code)
	e.FieldStart("discountType")
	e.Str(string(p.DiscountType))
	e.FieldStart("value")
	jsonx.Rate(e, p.Value)
	e.FieldStart("minimumOrder")
	jsonx.Decimal(e, p.MinimumOrder)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("freeShipping")
	e.Bool(p.FreeShipping)
	e.ObjEnd()
}

func encodeTotals(e *jx.Encoder, t cart.Totals) {
	e.ObjStart()
	e.FieldStart("totalItems")
	e.Int(t.TotalItems)
	e.FieldStart("subtotal")
	jsonx.Decimal(e, t.Subtotal)
	e.FieldStart("tax")
	jsonx.Decimal(e, t.Tax)
	e.FieldStart("discount")
	jsonx.Decimal(e, t.Discount)
	e.FieldStart("shipping")
	jsonx.Decimal(e, t.Shipping)
	e.FieldStart("total")
	jsonx.Decimal(e, t.Total)
	e.ObjEnd()
}

func encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(it.ProductID)
	e.FieldStart("size")
	e.Str(it.Size)
	e.FieldStart("color")
	e.Str(it.Color)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("image")
	e.Str(it.Image)
	e.FieldStart("price")
	jsonx.Decimal(e, it.Price)
	e.FieldStart("salePrice")
	jsonx.NullDecimal(e, it.SalePrice)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("maxQuantity")
	e.Int(it.MaxQuantity)
	e.FieldStart("lineTotal")
	jsonx.Decimal(e, it.LineTotal())
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, snap cart.Snapshot) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range snap.State.Items {
		encodeCartItem(e, it)
	}
	e.ArrEnd()
	e.FieldStart("shippingMethod")
	e.Str(snap.State.ShippingMethod)
	e.FieldStart("promotion")
	if p := snap.State.Promotion; p != nil {
		encodePromotion(e, *p)
	} else {
		e.Null()
	}
	e.FieldStart("taxRate")
	jsonx.Rate(e, snap.State.TaxRate)
	e.FieldStart("totals")
	encodeTotals(e, snap.Totals)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	for _, f := range []struct{ name, value string }{
		{"name", a.Name},
		{"line1", a.Line1},
		{"line2", a.Line2},
		{"city", a.City},
		{"region", a.Region},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		e.FieldStart(f.name)
		e.Str(f.value)
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("number")
	e.Str(o.Number)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
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
		jsonx.Decimal(e, it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("lineTotal")
		jsonx.Decimal(e, it.LineTotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("totals")
	encodeTotals(e, o.Totals)
	e.FieldStart("promotionCode")
	if o.PromotionCode != "" {
		e.Str(o.PromotionCode)
	} else {
		e.Null()
	}
	e.FieldStart("shippingMethod")
	e.Str(o.ShippingMethod)
	e.FieldStart("shippingAddress")
	encodeAddress(e, o.ShippingAddress)
	e.FieldStart("paymentMethod")
	e.Str(o.PaymentMethodDisplay)
	e.FieldStart("placedAt")
	e.Str(o.PlacedAt.Format(time.RFC3339))
	e.ObjEnd()
}
