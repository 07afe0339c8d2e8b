package book

import (
	"slices"
	"strings"

	"xbt_book/internal/domain"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// State is the sorted projection of the book.
type State struct {
	Asks      []domain.Order `json:"asks"`
	Bids      []domain.Order `json:"bids"`
	Sequence  string         `json:"sequence"`
	Timestamp *int64         `json:"timestamp"`
	Trades    []domain.Trade `json:"trades"`
}

// Query selects a best price. A nil Pair asks for the midpoint.
type Query struct {
	Pair    *domain.Pair
	Exclude []string
}

type excludeSet map[string]struct{}

func newExcludeSet(ids []string) excludeSet {
	if len(ids) == 0 {
		return nil
	}
	set := make(excludeSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s excludeSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// Snapshot returns asks ascending and bids descending by price, equal prices
// ordered by id. It reports false when the book is not live.
func (b *Book) Snapshot() (State, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.live {
		return State{}, false
	}

	st := State{
		Asks:     []domain.Order{},
		Bids:     []domain.Order{},
		Sequence: b.sequence,
		Trades:   append([]domain.Trade{}, b.trades...),
	}
	if b.timestamp != nil {
		ts := *b.timestamp
		st.Timestamp = &ts
	}
	for _, o := range b.orders {
		if o.Side == domain.SideAsk {
			st.Asks = append(st.Asks, *o)
		} else {
			st.Bids = append(st.Bids, *o)
		}
	}
	slices.SortFunc(st.Asks, func(x, y domain.Order) int {
		if c := x.Price.Cmp(y.Price); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	slices.SortFunc(st.Bids, func(x, y domain.Order) int {
		if c := y.Price.Cmp(x.Price); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return st, true
}

// Order returns a copy of the resting order with the given id.
func (b *Book) Order(id string) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// MinAskPrice returns the lowest ask not in exclude, +Inf when there is none.
func (b *Book) MinAskPrice(exclude ...string) (quant.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.live {
		return quant.Price{}, false
	}
	return b.minAsk(newExcludeSet(exclude)), true
}

// MaxBidPrice returns the highest bid not in exclude, -Inf when there is none.
func (b *Book) MaxBidPrice(exclude ...string) (quant.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.live {
		return quant.Price{}, false
	}
	return b.maxBid(newExcludeSet(exclude)), true
}

func (b *Book) minAsk(ex excludeSet) quant.Price {
	best := quant.PosInf()
	for _, o := range b.orders {
		if o.Side != domain.SideAsk || ex.has(o.ID) {
			continue
		}
		if p := quant.NewPrice(o.Price); p.Cmp(best) < 0 {
			best = p
		}
	}
	return best
}

func (b *Book) maxBid(ex excludeSet) quant.Price {
	best := quant.NegInf()
	for _, o := range b.orders {
		if o.Side != domain.SideBid || ex.has(o.ID) {
			continue
		}
		if p := quant.NewPrice(o.Price); p.Cmp(best) > 0 {
			best = p
		}
	}
	return best
}

// Direction resolves a currency pair against the book's market.
func (b *Book) Direction(p *domain.Pair) domain.Direction {
	return b.market.Direction(p)
}

// BestPrice returns the min ask for a sell pair, the max bid for a buy pair
// and the midpoint without a pair. It reports false for an unknown pair, a
// book that is not live, or a midpoint between two empty sides.
func (b *Book) BestPrice(q Query) (quant.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.live {
		return quant.Price{}, false
	}
	return b.bestPrice(q.Pair, newExcludeSet(q.Exclude))
}

func (b *Book) bestPrice(pair *domain.Pair, ex excludeSet) (quant.Price, bool) {
	switch b.market.Direction(pair) {
	case domain.DirectionNone:
		return quant.Mid(b.maxBid(ex), b.minAsk(ex))
	case domain.DirectionAsk:
		return b.minAsk(ex), true
	case domain.DirectionBid:
		return b.maxBid(ex), true
	}
	return quant.Price{}, false
}

// BidDepth sums the volume of bids priced at or above threshold.
func (b *Book) BidDepth(threshold quant.Price, exclude ...string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bidDepth(threshold, newExcludeSet(exclude))
}

// AskDepth sums the volume of asks priced at or below threshold, rounding the
// running total to 2 decimals at every step.
func (b *Book) AskDepth(threshold quant.Price, exclude ...string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.askDepth(threshold, newExcludeSet(exclude))
}

func usableThreshold(p quant.Price) bool {
	return p.IsSet() && !(p.IsFinite() && p.Decimal().IsZero())
}

func (b *Book) bidDepth(threshold quant.Price, ex excludeSet) (decimal.Decimal, bool) {
	if !b.live || !usableThreshold(threshold) {
		return decimal.Zero, false
	}
	depth := decimal.Zero
	for _, o := range b.orders {
		if o.Side != domain.SideBid || ex.has(o.ID) {
			continue
		}
		if quant.NewPrice(o.Price).GreaterThanOrEqual(threshold) {
			depth = depth.Add(o.Volume)
		}
	}
	return depth, true
}

func (b *Book) askDepth(threshold quant.Price, ex excludeSet) (decimal.Decimal, bool) {
	if !b.live || !usableThreshold(threshold) {
		return decimal.Zero, false
	}
	depth := decimal.Zero
	for _, o := range b.orders {
		if o.Side != domain.SideAsk || ex.has(o.ID) {
			continue
		}
		if quant.NewPrice(o.Price).LessThanOrEqual(threshold) {
			depth = depth.Add(o.Volume).Round(2)
		}
	}
	return depth, true
}

// IsMarketable reports whether o would cross the book immediately: an ASK at
// or below the best bid, a BID at or above the best ask, with enough opposite
// depth at o's price. A zero volume is always deep enough.
func (b *Book) IsMarketable(o domain.Order) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.live {
		return false
	}
	price := quant.NewPrice(o.Price)

	switch o.Side {
	case domain.SideAsk:
		best, ok := b.bestPrice(b.market.BuyPair(), nil)
		if !ok || price.Cmp(best) > 0 {
			return false
		}
		depth, ok := b.bidDepth(price, nil)
		return deepEnough(depth, ok, o.Volume)
	case domain.SideBid:
		if price.Cmp(b.minAsk(nil)) < 0 {
			return false
		}
		depth, ok := b.askDepth(price, nil)
		return deepEnough(depth, ok, o.Volume)
	}
	return false
}

func deepEnough(depth decimal.Decimal, known bool, volume decimal.Decimal) bool {
	return !known || volume.IsZero() || depth.GreaterThanOrEqual(volume)
}
