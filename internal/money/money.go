// Package money holds the fixed-point helpers used for every due, paid and
// balance amount. Amounts are decimal values with at most two fractional
// digits; binary floats never enter the arithmetic.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 2

var hundred = decimal.NewFromInt(100)

func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if !HasCents(d) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimal places", d, Scale)
	}
	return Round(d), nil
}

// MustParse is for constants and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// HasCents reports whether d is representable without rounding.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

func Max0(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent returns pct percent of base, rounded half away from zero to cents.
func Percent(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

func Times(unit decimal.Decimal, qty int) decimal.Decimal {
	return Round(unit.Mul(decimal.NewFromInt(int64(qty))))
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func Min(a decimal.Decimal, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
