// Package feed defines the inbound market-data messages and decodes them once
// at the transport boundary. The book only ever sees these typed values.
package feed

import (
	"xbt_book/internal/domain"

	"github.com/shopspring/decimal"
)

// Message is either a *Snapshot or an *Update.
type Message interface {
	Sequence() string
	isMessage()
}

// Entry is a resting order as listed in a snapshot.
type Entry struct {
	ID     string          `json:"id"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// Snapshot replaces the whole book.
type Snapshot struct {
	Seq       string
	Asks      []Entry
	Bids      []Entry
	Timestamp *int64 // nil when the feed sends null
}

// CreateEntry adds a resting order.
type CreateEntry struct {
	OrderID string          `json:"order_id"`
	Side    domain.Side     `json:"type"`
	Price   decimal.Decimal `json:"price"`
	Volume  decimal.Decimal `json:"volume"`
}

// TradeEntry reduces a resting order by Base; Counter is the quote amount paid.
type TradeEntry struct {
	OrderID string          `json:"order_id"`
	Base    decimal.Decimal `json:"base"`
	Counter decimal.Decimal `json:"counter"`
}

// DeleteEntry removes a resting order.
type DeleteEntry struct {
	OrderID string `json:"order_id"`
}

// Update is an incremental delta applied on top of a live book.
type Update struct {
	Seq       string
	Timestamp int64
	Create    *CreateEntry
	Trades    []TradeEntry
	Delete    *DeleteEntry
}

func (s *Snapshot) Sequence() string { return s.Seq }
func (u *Update) Sequence() string   { return u.Seq }

func (*Snapshot) isMessage() {}
func (*Update) isMessage()   {}
