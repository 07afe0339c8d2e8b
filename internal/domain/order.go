package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Side is the side of a resting limit order.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// Valid reports whether s is BID or ASK.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Order is a resting limit order. Values are copied out of the book;
// holders re-resolve by ID to observe later changes.
type Order struct {
	ID     string          `json:"id"`
	Side   Side            `json:"type"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// MarshalJSON renders price with two decimals and volume exactly ("1237.00", "0.95").
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string `json:"id"`
		Price  string `json:"price"`
		Volume string `json:"volume"`
		Side   Side   `json:"type"`
	}{
		ID:     o.ID,
		Price:  o.Price.StringFixed(2),
		Volume: o.Volume.String(),
		Side:   o.Side,
	})
}

// OpenOrder is a pending order reported by the trading API.
type OpenOrder struct {
	ID                string
	Side              Side
	LimitPrice        decimal.Decimal
	LimitVolume       decimal.Decimal
	CreationTimestamp int64 // Unix milliseconds
}

// Position is a desired resting order: the execution layer keeps exactly
// Volume on order at (Side, Price).
type Position struct {
	Side   Side
	Price  decimal.Decimal
	Volume decimal.Decimal
}
