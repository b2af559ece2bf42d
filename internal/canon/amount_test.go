package canon

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 4500.0, 4500},
		{"int", 12, 12},
		{"json number", json.Number("1250.5"), 1250.5},
		{"crore", "₹2.50 Cr", 25_000_000},
		{"lakh", "₹5 L", 500_000},
		{"lakh decimals", "₹85.5 L", 8_550_000},
		{"lakh word", "12 Lakh", 1_200_000},
		{"grouped digits", "₹1,50,000", 150_000},
		{"free text", "around 18000 per month", 18000},
		{"negative", "-33.86", -33.86},
		{"no digits", "Price on request", -1},
		{"bool", true, -1},
		{"nil", nil, -1},
		{"map", map[string]any{"a": 1}, -1},
		{"nan", math.NaN(), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Amount(tc.in, -1), 1e-6)
		})
	}
}

func TestFormatINR(t *testing.T) {
	assert.Equal(t, "Price on request", FormatINR(0))
	assert.Equal(t, "₹2.50 Cr", FormatINR(25_000_000))
	assert.Equal(t, "₹85.50 L", FormatINR(8_550_000))
	assert.Equal(t, "₹18,000", FormatINR(18000))
	assert.Equal(t, "₹950", FormatINR(950))
	assert.Equal(t, "12,34,567", groupIndian(1234567))
}
