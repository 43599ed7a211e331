package jsonx

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalRoundTripShapes(t *testing.T) {
	var e jx.Encoder
	e.ArrStart()
	Decimal(&e, decimal.RequireFromString("4.5"))
	NullDecimal(&e, decimal.NullDecimal{})
	Rate(&e, decimal.RequireFromString("0.0725"))
	e.ArrEnd()
	assert.Equal(t, `["4.50",null,"0.0725"]`, e.String())
}

func TestDecodeDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: `"19.99"`, want: "19.99"},
		{input: `19.99`, want: "19.99"},
		{input: `7`, want: "7"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := DecodeDecimal(jx.DecodeStr(tt.input))
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got))
		})
	}

	_, err := DecodeDecimal(jx.DecodeStr(`true`))
	require.Error(t, err)
	_, err = DecodeDecimal(jx.DecodeStr(`"abc"`))
	require.Error(t, err)
}

func TestDecodeNullDecimal(t *testing.T) {
	got, err := DecodeNullDecimal(jx.DecodeStr(`null`))
	require.NoError(t, err)
	assert.False(t, got.Valid)

	got, err = DecodeNullDecimal(jx.DecodeStr(`"3.10"`))
	require.NoError(t, err)
	assert.True(t, got.Valid)
	assert.True(t, decimal.RequireFromString("3.1").Equal(got.Decimal))
}

func TestStrings(t *testing.T) {
	var e jx.Encoder
	Strings(&e, nil)
	assert.Equal(t, `[]`, e.String())

	got, err := DecodeStrings(jx.DecodeStr(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	s, err := DecodeNullString(jx.DecodeStr(`null`))
	require.NoError(t, err)
	assert.Empty(t, s)
}
