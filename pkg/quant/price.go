package quant

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type priceKind uint8

const (
	priceUnset priceKind = iota
	priceFinite
	pricePosInf
	priceNegInf
)

// Price is a decimal price that can also hold the +Inf / -Inf sentinels
// reported by best-price queries over an empty side. The zero value is unset.
type Price struct {
	value decimal.Decimal
	kind  priceKind
}

// NewPrice wraps a finite decimal.
func NewPrice(d decimal.Decimal) Price {
	return Price{value: d, kind: priceFinite}
}

// ParsePrice parses a finite decimal string.
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return NewPrice(d), nil
}

// PosInf returns the +Inf sentinel.
func PosInf() Price { return Price{kind: pricePosInf} }

// NegInf returns the -Inf sentinel.
func NegInf() Price { return Price{kind: priceNegInf} }

// IsSet reports whether p holds a value (finite or infinite).
func (p Price) IsSet() bool { return p.kind != priceUnset }

// IsFinite reports whether p holds a finite value.
func (p Price) IsFinite() bool { return p.kind == priceFinite }

// IsPosInf reports whether p is +Inf.
func (p Price) IsPosInf() bool { return p.kind == pricePosInf }

// IsNegInf reports whether p is -Inf.
func (p Price) IsNegInf() bool { return p.kind == priceNegInf }

// Decimal returns the finite value, or zero for unset and infinite prices.
func (p Price) Decimal() decimal.Decimal {
	if p.kind != priceFinite {
		return decimal.Zero
	}
	return p.value
}

func (p Price) rank() int {
	switch p.kind {
	case priceNegInf:
		return -1
	case pricePosInf:
		return 1
	}
	return 0
}

// Cmp compares p and q, ordering -Inf < finite < +Inf. Unset sorts as zero.
func (p Price) Cmp(q Price) int {
	pr, qr := p.rank(), q.rank()
	if pr != qr {
		if pr < qr {
			return -1
		}
		return 1
	}
	if pr != 0 {
		return 0
	}
	return p.Decimal().Cmp(q.Decimal())
}

// Equal reports p == q.
func (p Price) Equal(q Price) bool { return p.kind == q.kind && p.Cmp(q) == 0 }

// LessThanOrEqual reports p <= q.
func (p Price) LessThanOrEqual(q Price) bool { return p.Cmp(q) <= 0 }

// GreaterThanOrEqual reports p >= q.
func (p Price) GreaterThanOrEqual(q Price) bool { return p.Cmp(q) >= 0 }

// Mid returns the midpoint of p and q. Opposite infinities have no midpoint.
func Mid(p, q Price) (Price, bool) {
	if !p.IsSet() || !q.IsSet() {
		return Price{}, false
	}
	pr, qr := p.rank(), q.rank()
	switch {
	case pr != 0 && qr != 0:
		if pr != qr {
			return Price{}, false
		}
		return p, true
	case pr != 0:
		return p, true
	case qr != 0:
		return q, true
	}
	return NewPrice(p.value.Add(q.value).Div(decimal.NewFromInt(2))), true
}

// String renders "+Inf", "-Inf", the decimal value, or "" when unset.
func (p Price) String() string {
	switch p.kind {
	case pricePosInf:
		return "+Inf"
	case priceNegInf:
		return "-Inf"
	case priceFinite:
		return p.value.String()
	}
	return ""
}

// MarshalJSON encodes finite prices as decimal strings, infinities as
// "+Inf"/"-Inf" and unset as null.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the forms produced by MarshalJSON and bare numbers.
func (p *Price) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Price{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	switch s {
	case "+Inf":
		*p = PosInf()
		return nil
	case "-Inf":
		*p = NegInf()
		return nil
	}
	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
