package quant

import (
	"errors"
	"fmt"
	"math"

	"xbt_book/pkg/safe"

	"github.com/shopspring/decimal"
)

// SatsPlaces is the number of decimals in one whole unit of the crypto asset.
const SatsPlaces int32 = 8

// Sats is a crypto volume expressed in satoshis (1e-8).
type Sats int64

// ErrSatsRange is returned for volumes that do not fit in an int64 of satoshis.
var ErrSatsRange = errors.New("volume out of satoshi range")

var (
	maxSats = decimal.NewFromInt(math.MaxInt64)
	minSats = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts a decimal volume to satoshis, rounding half away from
// zero.
func FromDecimal(d decimal.Decimal) (Sats, error) {
	v := d.Shift(SatsPlaces).Round(0)
	if v.GreaterThan(maxSats) || v.LessThan(minSats) {
		return 0, fmt.Errorf("%w: %s", ErrSatsRange, d)
	}
	return Sats(v.IntPart()), nil
}

// ToSats is FromDecimal for volumes known to be in range. The feed decoder
// rejects the rest. Panics when d is out of range.
func ToSats(d decimal.Decimal) Sats {
	s, err := FromDecimal(d)
	if err != nil {
		panic(fmt.Sprintf("INT64_OVERFLOW: %v", err))
	}
	return s
}

// Add returns s+o. Panics on overflow.
func (s Sats) Add(o Sats) Sats {
	return Sats(safe.SafeAdd(int64(s), int64(o)))
}

// Sub returns s-o. Panics on overflow.
func (s Sats) Sub(o Sats) Sats {
	return Sats(safe.SafeSub(int64(s), int64(o)))
}

// Decimal returns the exact decimal value of s.
func (s Sats) Decimal() decimal.Decimal {
	return FromMinor(int64(s), SatsPlaces)
}

// Format rounds s to places decimals and trims trailing zeros ("0.0005", "12.52").
func (s Sats) Format(places int32) string {
	return s.Decimal().Round(places).String()
}

// String renders the exact value with trailing zeros trimmed.
func (s Sats) String() string {
	return s.Decimal().String()
}

// SubDecimal reduces v by delta using satoshi arithmetic and returns the
// exact decimal result.
func SubDecimal(v, delta decimal.Decimal) decimal.Decimal {
	return ToSats(v).Sub(ToSats(delta)).Decimal()
}
