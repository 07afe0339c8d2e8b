package quant

import (
	"errors"
	"fmt"

	"xbt_book/pkg/safe"

	"github.com/shopspring/decimal"
)

// Currency identifies an asset and therefore its minor-unit precision.
type Currency string

const (
	ZAR Currency = "ZAR"
	XBT Currency = "XBT"
)

var (
	// ErrUnknownCurrency is returned for a currency with no known precision.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrCurrencyMismatch is returned when combining amounts of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Places returns the minor-unit precision of c.
func (c Currency) Places() (int32, error) {
	switch c {
	case ZAR:
		return 2, nil
	case XBT:
		return SatsPlaces, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, string(c))
}

// Amount is an immutable currency magnitude held in minor units.
type Amount struct {
	minor    int64
	currency Currency
	places   int32
}

// NewAmount creates an Amount from a decimal value. Digits beyond the
// currency precision are floored away.
func NewAmount(value decimal.Decimal, currency Currency) (Amount, error) {
	places, err := currency.Places()
	if err != nil {
		return Amount{}, err
	}
	return Amount{minor: ToMinor(value, places), currency: currency, places: places}, nil
}

// ParseAmount creates an Amount from a decimal string such as "100.099".
func ParseAmount(value string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return NewAmount(d, currency)
}

// Currency returns the currency identifier.
func (a Amount) Currency() Currency { return a.currency }

// Minor returns the amount in minor units.
func (a Amount) Minor() int64 { return a.minor }

// Decimal returns the exact decimal value.
func (a Amount) Decimal() decimal.Decimal { return FromMinor(a.minor, a.places) }

// Add returns a+o as a new Amount.
func (a Amount) Add(o Amount) (Amount, error) {
	if a.currency != o.currency {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, a.currency, o.currency)
	}
	return Amount{minor: safe.SafeAdd(a.minor, o.minor), currency: a.currency, places: a.places}, nil
}

// Sub returns a-o as a new Amount.
func (a Amount) Sub(o Amount) (Amount, error) {
	if a.currency != o.currency {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, a.currency, o.currency)
	}
	return Amount{minor: safe.SafeSub(a.minor, o.minor), currency: a.currency, places: a.places}, nil
}

// AddString parses value in a's currency and adds it.
func (a Amount) AddString(value string) (Amount, error) {
	o, err := ParseAmount(value, a.currency)
	if err != nil {
		return Amount{}, err
	}
	return a.Add(o)
}

// String renders the amount with the currency's full precision ("100.00", "0.09900000").
func (a Amount) String() string {
	return FormatMinor(a.minor, a.places)
}
