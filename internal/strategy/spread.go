package strategy

import (
	"log/slog"

	"xbt_book/internal/book"
	"xbt_book/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultVolume is the quoted size when none is configured.
var DefaultVolume = decimal.RequireFromString("0.0005")

var one = decimal.NewFromInt(1)

// SpreadQuoter keeps one bid and one ask just inside the best prices of
// everybody else, stepping a whole unit of the counter currency into the
// spread when the spread is wide enough.
type SpreadQuoter struct {
	volume        decimal.Decimal
	notMarketable bool
	logger        *slog.Logger
}

// NewSpreadQuoter creates a quoter for a fixed volume. With notMarketable set
// positions that would cross the book are dropped.
func NewSpreadQuoter(volume decimal.Decimal, notMarketable bool) *SpreadQuoter {
	if !volume.IsPositive() {
		volume = DefaultVolume
	}
	return &SpreadQuoter{
		volume:        volume,
		notMarketable: notMarketable,
		logger:        slog.Default().With("module", "strategy"),
	}
}

// Volume returns the quoted size.
func (s *SpreadQuoter) Volume() decimal.Decimal { return s.volume }

// OnMarketUpdate quotes both sides of the ticker computed without our own orders.
func (s *SpreadQuoter) OnMarketUpdate(view BookView, own []string) []domain.Position {
	t, ok := view.Ticker(own...)
	if !ok {
		return nil
	}

	positions := make([]domain.Position, 0, 2)
	if price, ok := BestBuyPrice(t); ok {
		positions = append(positions, domain.Position{Side: domain.SideBid, Price: price, Volume: s.volume})
	}
	if price, ok := BestSellPrice(t); ok {
		positions = append(positions, domain.Position{Side: domain.SideAsk, Price: price, Volume: s.volume})
	}
	if !s.notMarketable {
		return positions
	}

	kept := positions[:0]
	for _, p := range positions {
		if view.IsMarketable(domain.Order{Side: p.Side, Price: p.Price, Volume: p.Volume}) {
			s.logger.Info("dropping marketable position", "side", p.Side, "price", p.Price.StringFixed(2))
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// BestBuyPrice is the whole part of the best bid, plus one when the whole
// parts of the best ask and bid are more than one unit apart.
// It reports false while either side of the ticker is empty.
func BestBuyPrice(t book.Ticker) (decimal.Decimal, bool) {
	bid, ask, ok := wholePrices(t)
	if !ok {
		return decimal.Decimal{}, false
	}
	if ask.Sub(bid).GreaterThan(one) {
		bid = bid.Add(one)
	}
	return bid.Round(2), true
}

// BestSellPrice is the whole part of the best ask, minus one when the whole
// parts of the best ask and bid are more than one unit apart.
// It reports false while either side of the ticker is empty.
func BestSellPrice(t book.Ticker) (decimal.Decimal, bool) {
	bid, ask, ok := wholePrices(t)
	if !ok {
		return decimal.Decimal{}, false
	}
	if ask.Sub(bid).GreaterThan(one) {
		ask = ask.Sub(one)
	}
	return ask.Round(2), true
}

func wholePrices(t book.Ticker) (bid, ask decimal.Decimal, ok bool) {
	if !t.Bid.IsFinite() || !t.Ask.IsFinite() {
		return bid, ask, false
	}
	return t.Bid.Decimal().Truncate(0), t.Ask.Decimal().Truncate(0), true
}
