package utils

import "github.com/shopspring/decimal"

// Round2 rounds x to 2 decimal places (half away from zero).
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
