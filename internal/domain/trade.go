package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of a fill against a resting order.
type Trade struct {
	Volume    decimal.Decimal // base amount
	Timestamp int64
	Price     decimal.Decimal // counter / base, rounded to 2 decimals
	IsBuy     bool            // the matched resting order was an ASK
}

// MarshalJSON renders the trade in the feed's string-decimal style.
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Volume    string `json:"volume"`
		Timestamp int64  `json:"timestamp"`
		Price     string `json:"price"`
		IsBuy     bool   `json:"is_buy"`
	}{
		Volume:    t.Volume.String(),
		Timestamp: t.Timestamp,
		Price:     t.Price.StringFixed(2),
		IsBuy:     t.IsBuy,
	})
}
