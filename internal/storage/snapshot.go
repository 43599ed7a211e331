package storage

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrVersionMismatch is returned by DecodeSnapshot when the stored schema
// version differs from the expected one. Callers reset to a default state
// instead of migrating field by field; losing an outdated cart is accepted.
var ErrVersionMismatch = errors.New("snapshot version mismatch")

// EncodeSnapshot wraps the state written by body in a versioned envelope:
//
//	{"version":N,"state":<body>}
func EncodeSnapshot(version int, body func(e *jx.Encoder)) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("version")
	e.Int(version)
	e.FieldStart("state")
	body(&e)
	e.ObjEnd()
	return e.Bytes()
}

// DecodeSnapshot checks the envelope version and hands the state to body.
// body is not called when the version does not match.
func DecodeSnapshot(data []byte, version int, body func(d *jx.Decoder) error) error {
	var (
		got   = -1
		state jx.Raw
	)
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "version")
			}
			got = v
		case "state":
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, "state")
			}
			state = raw
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "decode envelope")
	}

	if got != version {
		return errors.Wrapf(ErrVersionMismatch, "stored %d, want %d", got, version)
	}
	if state == nil {
		return errors.New("snapshot has no state")
	}
	return body(jx.DecodeBytes(state))
}
