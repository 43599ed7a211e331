// Package jsonx holds jx helpers shared by the snapshot codecs and the HTTP
// layer. Money travels as JSON strings so no precision is lost.
package jsonx

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Decimal writes d as a JSON string.
func Decimal(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

// Rate writes d as a JSON string without fixing the scale.
func Rate(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.String())
}

// NullDecimal writes d as a JSON string, or null when invalid.
func NullDecimal(e *jx.Encoder, d decimal.NullDecimal) {
	if !d.Valid {
		e.Null()
		return
	}
	Decimal(e, d.Decimal)
}

// DecodeDecimal reads a decimal encoded either as a JSON string or number.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

// DecodeNullDecimal reads a decimal or null.
func DecodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := DecodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

// DecodeNullString reads a string or null; null yields "".
func DecodeNullString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// Strings writes a JSON array of strings. A nil slice encodes as [].
func Strings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

// DecodeStrings reads a JSON array of strings.
func DecodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
