package money

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMonthlyEquivalent(t *testing.T) {
	tests := []struct {
		name string
		cost string
		freq Frequency
		want string
	}{
		{"monthly unchanged", "1200", Monthly, "1200"},
		{"yearly divided by 12", "6000", Yearly, "500"},
		{"yearly non-integer", "100", Yearly, "8.33"},
		{"one-time excluded from run-rate", "500", OneTime, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round2(MonthlyEquivalent(d(tt.cost), tt.freq))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestRangeEquivalent(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("one-time inside window counts in full", func(t *testing.T) {
		got := RangeEquivalent(d("500"), OneTime, from.AddDate(0, 0, 10), from, to)
		assert.True(t, got.Equal(d("500")))
	})
	t.Run("one-time on window start counts", func(t *testing.T) {
		got := RangeEquivalent(d("500"), OneTime, from, from, to)
		assert.True(t, got.Equal(d("500")))
	})
	t.Run("one-time on window end excluded", func(t *testing.T) {
		got := RangeEquivalent(d("500"), OneTime, to, from, to)
		assert.True(t, got.IsZero())
	})
	t.Run("one-time outside window excluded", func(t *testing.T) {
		got := RangeEquivalent(d("500"), OneTime, to.AddDate(0, 1, 0), from, to)
		assert.True(t, got.IsZero())
	})
	t.Run("one-time without effective date excluded", func(t *testing.T) {
		got := RangeEquivalent(d("500"), OneTime, time.Time{}, from, to)
		assert.True(t, got.IsZero())
	})
	t.Run("recurring ignores window", func(t *testing.T) {
		got := RangeEquivalent(d("6000"), Yearly, time.Time{}, from, to)
		assert.True(t, got.Equal(d("500")))
	})
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" monthly ")
	require.NoError(t, err)
	assert.Equal(t, Monthly, f)

	_, err = ParseFrequency("weekly")
	assert.Error(t, err)
}
