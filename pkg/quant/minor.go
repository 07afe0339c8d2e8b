package quant

import (
	"github.com/shopspring/decimal"
)

// ToMinor scales d by 10^places and drops the remaining fraction toward
// negative infinity.
func ToMinor(d decimal.Decimal, places int32) int64 {
	return d.Shift(places).Floor().IntPart()
}

// FromMinor converts a minor-unit integer back into a decimal value.
func FromMinor(minor int64, places int32) decimal.Decimal {
	return decimal.New(minor, -places)
}

// FormatMinor renders a minor-unit integer with exactly places decimals.
func FormatMinor(minor int64, places int32) string {
	return FromMinor(minor, places).StringFixed(places)
}
