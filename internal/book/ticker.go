package book

import (
	"encoding/json"

	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// Ticker summarises the top of the book and the trades since the last snapshot.
// RollingVolume and LastTrade are invalid until the first trade.
type Ticker struct {
	Ask           quant.Price
	Bid           quant.Price
	Timestamp     *int64
	RollingVolume decimal.NullDecimal
	LastTrade     decimal.NullDecimal
}

// MarshalJSON uses the exchange's ticker field names.
func (t Ticker) MarshalJSON() ([]byte, error) {
	out := struct {
		Ask           quant.Price `json:"ask"`
		Timestamp     *int64      `json:"timestamp"`
		Bid           quant.Price `json:"bid"`
		RollingVolume *string     `json:"rolling_24_hour_volume"`
		LastTrade     *string     `json:"last_trade"`
	}{Ask: t.Ask, Timestamp: t.Timestamp, Bid: t.Bid}
	if t.RollingVolume.Valid {
		v := t.RollingVolume.Decimal.StringFixed(3)
		out.RollingVolume = &v
	}
	if t.LastTrade.Valid {
		v := t.LastTrade.Decimal.StringFixed(2)
		out.LastTrade = &v
	}
	return json.Marshal(out)
}

// Ticker computes the ticker ignoring the excluded order ids. The bid is the
// best price for buying the base asset. It reports false when the book is not live.
func (b *Book) Ticker(exclude ...string) (Ticker, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.live {
		return Ticker{}, false
	}

	ex := newExcludeSet(exclude)
	t := Ticker{Ask: b.minAsk(ex)}
	t.Bid, _ = b.bestPrice(b.market.BuyPair(), ex)
	if b.timestamp != nil {
		ts := *b.timestamp
		t.Timestamp = &ts
	}
	if len(b.trades) > 0 {
		volume := decimal.Zero
		for _, tr := range b.trades {
			volume = volume.Add(tr.Volume).Round(3)
		}
		t.RollingVolume = decimal.NewNullDecimal(volume)
		t.LastTrade = decimal.NewNullDecimal(b.trades[len(b.trades)-1].Price)
	}
	return t, true
}
