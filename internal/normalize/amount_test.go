package normalize

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/insightdelivered/statement-agent/internal/models"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"₹1,23,456.78", 123456.78, true},
		{"(₹500)", -500, true},
		{"1.234,56", 1234.56, true},
		{"2\u202f345,67", 2345.67, true},
		{"2\u00a0345,67", 2345.67, true},
		{"1,234.00 DR", -1234, true},
		{"1,234.00 CR", 1234, true},
		{" $3,000.00 dr ", 3000, true},
		{"₹-250", -250, true},
		{"\u22121,000", -1000, true},
		{"1'234.50", 1234.5, true},
		{"1,234", 1234, true},
		{"12,50", 12.5, true},
		{"0.00", 0, true},
		{"25.99", 25.99, true},
		{"\u2014", 0, false},
		{"-", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"NaN", 0, false},
		{"credit", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalizeAmountIdempotent(t *testing.T) {
	for _, in := range []string{"₹1,23,456.78", "(₹500)", "1.234,56", "1,234.00 DR", "0.1", "-42"} {
		first, ok := NormalizeAmount(in)
		if !assert.True(t, ok, in) {
			continue
		}
		second, ok := NormalizeAmount(strconv.FormatFloat(first, 'f', -1, 64))
		assert.True(t, ok, in)
		assert.Equal(t, first, second, in)
	}
}

func TestAmountValue(t *testing.T) {
	assert.Equal(t, models.Num(12.5), AmountValue(models.Str("12.50")))
	assert.Equal(t, models.Num(7), AmountValue(models.Num(7)))
	assert.True(t, AmountValue(models.Null).IsAbsent())
	assert.True(t, AmountValue(models.Str("n/a")).IsAbsent())
}

func TestQuantizeAmount(t *testing.T) {
	assert.Equal(t, 0.3, QuantizeAmount(0.1+0.2, 2))
	assert.Equal(t, 1234.57, QuantizeAmount(1234.5678, 2))
	assert.Equal(t, -10.0, QuantizeAmount(-10, 2))
}
