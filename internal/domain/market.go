package domain

import "xbt_book/pkg/quant"

// Direction is the book side a currency conversion resolves to.
type Direction int

const (
	// DirectionNone means no pair was supplied.
	DirectionNone Direction = iota
	// DirectionBid buys the base asset with the counter currency.
	DirectionBid
	// DirectionAsk sells the base asset for the counter currency.
	DirectionAsk
	// DirectionUndefined means the pair is not traded on this market.
	DirectionUndefined
)

func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "NONE"
	case DirectionBid:
		return "BID"
	case DirectionAsk:
		return "ASK"
	default:
		return "UNDEFINED"
	}
}

// Pair is a source/target currency conversion.
type Pair struct {
	From quant.Currency
	To   quant.Currency
}

// Market describes the single traded pair, e.g. XBT (base) / ZAR (counter).
type Market struct {
	Base    quant.Currency
	Counter quant.Currency
}

// DefaultMarket is the XBT/ZAR market.
var DefaultMarket = Market{Base: quant.XBT, Counter: quant.ZAR}

// Code returns the exchange pair code ("XBTZAR").
func (m Market) Code() string {
	return string(m.Base) + string(m.Counter)
}

// BuyPair converts the counter currency into the base asset.
func (m Market) BuyPair() *Pair {
	return &Pair{From: m.Counter, To: m.Base}
}

// SellPair converts the base asset into the counter currency.
func (m Market) SellPair() *Pair {
	return &Pair{From: m.Base, To: m.Counter}
}

// Direction resolves a pair to a book side.
func (m Market) Direction(p *Pair) Direction {
	if p == nil {
		return DirectionNone
	}
	switch {
	case p.From == m.Counter && p.To == m.Base:
		return DirectionBid
	case p.From == m.Base && p.To == m.Counter:
		return DirectionAsk
	}
	return DirectionUndefined
}
