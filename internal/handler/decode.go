package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/jsonx"
)

const maxBodySize = 64 << 10

// decodeObject reads a JSON object body and feeds each field to fn.
func decodeObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest(errors.Wrap(err, "read body"))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return badRequest(errors.New("empty body"))
	}
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if err := fn(d, key); err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		return badRequest(err)
	}
	return nil
}

// itemRequest addresses a cart line or, without size and color, every line
// of a product.
type itemRequest struct {
	ProductID   string
	Size        string
	Color       string
	Quantity    int
	HasQuantity bool
}

func (req itemRequest) variant() bool {
	return req.Size != "" || req.Color != ""
}

func decodeItemRequest(w http.ResponseWriter, r *http.Request) (itemRequest, error) {
	var req itemRequest
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "size":
			req.Size, err = jsonx.DecodeNullString(d)
		case "color":
			req.Color, err = jsonx.DecodeNullString(d)
		case "quantity":
			req.Quantity, err = d.Int()
			req.HasQuantity = err == nil
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

// decodeField reads a body with a single relevant string field.
func decodeField(w http.ResponseWriter, r *http.Request, field string) (string, error) {
	var (
		v     string
		found bool
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		found = true
		var err error
		v, err = d.Str()
		return err
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", badRequest(errors.Errorf("%s is required", field))
	}
	return v, nil
}

func decodeTaxRate(w http.ResponseWriter, r *http.Request) (decimal.Decimal, error) {
	var (
		rate  decimal.Decimal
		found bool
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "taxRate" {
			return d.Skip()
		}
		found = true
		var err error
		rate, err = jsonx.DecodeDecimal(d)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, badRequest(errors.New("taxRate is required"))
	}
	return rate, nil
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var target *string
		switch key {
		case "name":
			target = &a.Name
		case "line1":
			target = &a.Line1
		case "line2":
			target = &a.Line2
		case "city":
			target = &a.City
		case "region":
			target = &a.Region
		case "postalCode":
			target = &a.PostalCode
		case "country":
			target = &a.Country
		default:
			return d.Skip()
		}
		v, err := jsonx.DecodeNullString(d)
		if err != nil {
			return errors.Wrap(err, key)
		}
		*target = v
		return nil
	})
	return a, err
}

func decodeCheckoutRequest(w http.ResponseWriter, r *http.Request) (order.Request, error) {
	var req order.Request
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "shippingAddress":
			req.ShippingAddress, err = decodeAddress(d)
		case "paymentMethod":
			req.PaymentMethodDisplay, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}
