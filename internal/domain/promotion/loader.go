package promotion

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
)

// Column order of a promotion table file. The header row is optional.
//
//	code,discount_type,value,minimum_order,free_shipping,description,eligibility
const numColumns = 7

// LoadFile reads a promotion table from a CSV file. Files ending in ".gz"
// are decompressed on the fly.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	promos, err := Parse(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return NewTable(promos...)
}

// Parse decodes promotion definitions from CSV.
func Parse(r io.Reader) ([]Promotion, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var promos []Promotion
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return promos, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if line == 1 && strings.EqualFold(rec[0], "code") {
			continue
		}
		p, err := parseRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		promos = append(promos, p)
	}
}

func parseRecord(rec []string) (Promotion, error) {
	if len(rec) < 3 || len(rec) > numColumns {
		return Promotion{}, errors.Errorf("expected 3 to %d columns, got %d", numColumns, len(rec))
	}
	// Pad optional trailing columns.
	for len(rec) < numColumns {
		rec = append(rec, "")
	}

	value, err := decimal.NewFromString(rec[2])
	if err != nil {
		return Promotion{}, errors.Wrap(err, "value")
	}
	minimum := decimal.Zero
	if rec[3] != "" {
		if minimum, err = decimal.NewFromString(rec[3]); err != nil {
			return Promotion{}, errors.Wrap(err, "minimum_order")
		}
	}
	freeShipping := false
	if rec[4] != "" {
		if freeShipping, err = strconv.ParseBool(rec[4]); err != nil {
			return Promotion{}, errors.Wrap(err, "free_shipping")
		}
	}

	return Promotion{
		Code:         normalize(rec[0]),
		DiscountType: DiscountType(strings.ToLower(rec[1])),
		Value:        value,
		MinimumOrder: minimum,
		FreeShipping: freeShipping,
		Description:  rec[5],
		Eligibility:  rec[6],
	}, nil
}
