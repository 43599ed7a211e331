package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/jsonx"
	"github.com/xenking/storefront/internal/storage"
)

// SnapshotVersion is the schema version of persisted carts. Bump it whenever
// the encoded state changes shape; older snapshots are then discarded.
const SnapshotVersion = 1

func encodeSnapshot(st State) []byte {
	return storage.EncodeSnapshot(SnapshotVersion, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range st.Items {
			encodeItem(e, it)
		}
		e.ArrEnd()
		e.FieldStart("shippingMethod")
		e.Str(st.ShippingMethod)
		e.FieldStart("promotion")
		if st.Promotion != nil {
			e.Str(st.Promotion.Code)
		} else {
			e.Null()
		}
		e.FieldStart("taxRate")
		jsonx.Rate(e, st.TaxRate)
		e.ObjEnd()
	})
}

func encodeItem(e *jx.Encoder, it Item) {
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
	e.ObjEnd()
}

// decodeSnapshot restores a cart. The promotion is stored by code and
// re-resolved against promos; a code that no longer exists is dropped.
func decodeSnapshot(data []byte, promos promotion.Lookup, lg *zap.Logger) (State, error) {
	var (
		st   State
		code string
	)
	err := storage.DecodeSnapshot(data, SnapshotVersion, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "items":
				err = d.Arr(func(d *jx.Decoder) error {
					it, err := decodeItem(d)
					if err != nil {
						return err
					}
					st.Items = append(st.Items, it)
					return nil
				})
			case "shippingMethod":
				st.ShippingMethod, err = d.Str()
			case "promotion":
				code, err = jsonx.DecodeNullString(d)
			case "taxRate":
				st.TaxRate, err = jsonx.DecodeDecimal(d)
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrap(err, key)
			}
			return nil
		})
	})
	if err != nil {
		return State{}, err
	}

	if err := checkState(st); err != nil {
		return State{}, err
	}

	if code != "" {
		p, ok := promos.Find(code)
		if ok {
			st.Promotion = &p
		} else {
			lg.Warn("Dropping unknown promotion from snapshot", zap.String("code", code))
		}
	}
	return st, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var it Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "size":
			it.Size, err = d.Str()
		case "color":
			it.Color, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "image":
			it.Image, err = d.Str()
		case "price":
			it.Price, err = jsonx.DecodeDecimal(d)
		case "salePrice":
			it.SalePrice, err = jsonx.DecodeNullDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "maxQuantity":
			it.MaxQuantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return it, err
}

// checkState rejects snapshots that break the cart invariants instead of
// repairing them.
func checkState(st State) error {
	if st.ShippingMethod == "" {
		return errors.New("shipping method is empty")
	}
	if st.TaxRate.IsNegative() {
		return errors.New("negative tax rate")
	}
	seen := make(map[Key]struct{}, len(st.Items))
	for _, it := range st.Items {
		if it.ProductID == "" {
			return errors.New("item without product id")
		}
		if it.Quantity < 1 || (it.MaxQuantity > 0 && it.Quantity > it.MaxQuantity) {
			return errors.Errorf("item %s: quantity %d out of range", it.ProductID, it.Quantity)
		}
		if _, dup := seen[it.Key]; dup {
			return errors.Errorf("duplicate item %+v", it.Key)
		}
		seen[it.Key] = struct{}{}
	}
	return nil
}
