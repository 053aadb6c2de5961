package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsSubCentPrecision(t *testing.T) {
	_, err := Parse("10.005")
	require.Error(t, err)

	d, err := Parse(" 10.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("10.5")))
}

func TestRepeatedAdditionHasNoDrift(t *testing.T) {
	total := decimal.Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(MustParse("0.10"))
	}
	assert.True(t, total.Equal(FromInt(100)), total.String())
}

func TestPercentAndTimes(t *testing.T) {
	assert.True(t, Percent(FromInt(300), FromInt(10)).Equal(FromInt(30)))
	assert.True(t, Percent(MustParse("9.99"), MustParse("12.5")).Equal(MustParse("1.25")))
	assert.True(t, Times(MustParse("2.35"), 3).Equal(MustParse("7.05")))
}

func TestMax0AndMin(t *testing.T) {
	assert.True(t, Max0(FromInt(-5)).IsZero())
	assert.True(t, Max0(FromInt(5)).Equal(FromInt(5)))
	assert.True(t, Min(FromInt(3), FromInt(7)).Equal(FromInt(3)))
	assert.True(t, Sum(FromInt(1), FromInt(2), MustParse("0.5")).Equal(MustParse("3.5")))
}
