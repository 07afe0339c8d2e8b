package strategy

import (
	"xbt_book/internal/book"
	"xbt_book/internal/domain"
)

// BookView is the read-only part of the order book a strategy needs.
type BookView interface {
	Ticker(exclude ...string) (book.Ticker, bool)
	IsMarketable(o domain.Order) bool
}

// Strategy is the interface that all quoting strategies must implement.
// It is called from the quoting loop after book updates, never from the
// sequencer goroutine.
type Strategy interface {
	// OnMarketUpdate returns the positions that should be resting on the
	// book. own lists the order ids placed by us, which the strategy must
	// not react to. A nil result means no decision can be made yet.
	OnMarketUpdate(view BookView, own []string) []domain.Position
}
