// Package book reconstructs the order book of one market from the sequenced
// feed and answers the analytics queries the strategy and execution layers use.
//
// A Book has a single writer (Apply) and any number of concurrent readers.
// Notifications are published after the write lock is released, so handlers
// may query the book.
package book

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"xbt_book/internal/domain"
	"xbt_book/internal/event"
	"xbt_book/internal/feed"
	"xbt_book/pkg/quant"
)

// Book is the order book state machine.
type Book struct {
	market   domain.Market
	notifier *event.Notifier

	mu          sync.RWMutex
	live        bool
	initialized bool // a snapshot has been applied at least once
	orders      map[string]*domain.Order
	sequence    string
	timestamp   *int64
	trades      []domain.Trade
	removed     []string
}

// New creates an uninitialized book for market.
func New(market domain.Market) *Book {
	return &Book{
		market:   market,
		notifier: event.NewNotifier(),
	}
}

// Market returns the market this book tracks.
func (b *Book) Market() domain.Market { return b.market }

// Notifier returns the book's observer registry.
func (b *Book) Notifier() *event.Notifier { return b.notifier }

// Apply processes one feed message. A snapshot always succeeds. An update
// fails with ErrNotLive before the first snapshot, and with
// ErrSequenceMismatch, ErrUnknownOrder or ErrVolumeUnderflow after flushing
// the book; the caller must then resynchronize.
func (b *Book) Apply(msg feed.Message) error {
	var (
		notes []event.Notification
		err   error
	)
	switch m := msg.(type) {
	case *feed.Snapshot:
		notes = b.applySnapshot(m)
	case *feed.Update:
		notes, err = b.applyUpdate(m)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownMessage, msg)
	}
	for _, n := range notes {
		b.notifier.Publish(n)
	}
	return err
}

func (b *Book) applySnapshot(s *feed.Snapshot) []event.Notification {
	slog.Debug("book: applying snapshot", slog.String("sequence", s.Seq))

	b.mu.Lock()
	defer b.mu.Unlock()

	b.orders = make(map[string]*domain.Order, len(s.Asks)+len(s.Bids))
	for _, e := range s.Asks {
		b.orders[e.ID] = &domain.Order{ID: e.ID, Side: domain.SideAsk, Price: e.Price, Volume: e.Volume}
	}
	for _, e := range s.Bids {
		b.orders[e.ID] = &domain.Order{ID: e.ID, Side: domain.SideBid, Price: e.Price, Volume: e.Volume}
	}
	b.sequence = s.Seq
	b.timestamp = nil
	if s.Timestamp != nil {
		ts := *s.Timestamp
		b.timestamp = &ts
	}
	b.trades = []domain.Trade{}
	b.removed = []string{}
	b.live = true
	b.initialized = true

	return []event.Notification{{Kind: event.KindInitialized}}
}

func (b *Book) applyUpdate(u *feed.Update) ([]event.Notification, error) {
	slog.Debug("book: start processing", slog.String("sequence", u.Seq))

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.live {
		return nil, fmt.Errorf("%w: update %s", domain.ErrNotLive, u.Seq)
	}
	if !b.follows(u.Seq) {
		expected := b.sequence
		b.flushLocked()
		return nil, fmt.Errorf("%w: current %s, got %s", domain.ErrSequenceMismatch, expected, u.Seq)
	}
	if err := b.validateTrades(u); err != nil {
		b.flushLocked()
		return nil, err
	}

	var created *domain.Order
	if c := u.Create; c != nil {
		created = &domain.Order{ID: c.OrderID, Side: c.Side, Price: c.Price, Volume: c.Volume}
		b.orders[c.OrderID] = created
		slog.Debug("book: order creating", slog.String("id", c.OrderID))
	}

	for _, tr := range u.Trades {
		o := b.orders[tr.OrderID]
		o.Volume = quant.SubDecimal(o.Volume, tr.Base)
		if o.Volume.IsZero() {
			slog.Debug("book: removing filled order", slog.String("id", o.ID))
			delete(b.orders, o.ID)
			b.removed = append(b.removed, o.ID)
		}
		b.trades = append(b.trades, domain.Trade{
			Volume:    tr.Base,
			Timestamp: u.Timestamp,
			Price:     tr.Counter.Div(tr.Base).Round(2),
			IsBuy:     o.Side == domain.SideAsk,
		})
	}

	if d := u.Delete; d != nil {
		delete(b.orders, d.OrderID)
		b.removed = append(b.removed, d.OrderID)
	}

	ts := u.Timestamp
	b.timestamp = &ts
	b.sequence = u.Seq
	slog.Debug("book: finished processing", slog.String("sequence", u.Seq))

	notes := []event.Notification{{Kind: event.KindUpdated}}
	if created != nil {
		slog.Debug("book: order created", slog.String("id", created.ID))
		notes = append(notes, event.Notification{Kind: event.KindOrderCreated, Order: *created})
	}
	return notes, nil
}

// follows reports whether seq is exactly one past the current sequence.
func (b *Book) follows(seq string) bool {
	cur, err := strconv.ParseInt(b.sequence, 10, 64)
	if err != nil {
		return false
	}
	return strconv.FormatInt(cur+1, 10) == seq
}

// validateTrades replays the update's trades against the resting volumes
// without mutating the book.
func (b *Book) validateTrades(u *feed.Update) error {
	if len(u.Trades) == 0 {
		return nil
	}
	remaining := make(map[string]quant.Sats, len(u.Trades))
	for _, tr := range u.Trades {
		rem, ok := remaining[tr.OrderID]
		if !ok {
			// A create replaces a resting order with the same id before trades apply.
			switch o, found := b.orders[tr.OrderID]; {
			case u.Create != nil && u.Create.OrderID == tr.OrderID:
				rem = quant.ToSats(u.Create.Volume)
			case found:
				rem = quant.ToSats(o.Volume)
			default:
				return fmt.Errorf("%w: trade on %s in %s", domain.ErrUnknownOrder, tr.OrderID, u.Seq)
			}
		}
		base := quant.ToSats(tr.Base)
		if base > rem {
			return fmt.Errorf("%w: %s has %s, trade %s in %s",
				domain.ErrVolumeUnderflow, tr.OrderID, rem, tr.Base, u.Seq)
		}
		remaining[tr.OrderID] = rem.Sub(base)
	}
	return nil
}

// Flush discards the live state. Trade and removed-order history survive until
// the next snapshot. It reports whether the book was live.
func (b *Book) Flush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *Book) flushLocked() bool {
	if !b.live {
		return false
	}
	b.live = false
	b.orders = nil
	b.sequence = ""
	b.timestamp = nil
	return true
}

// IsLive reports whether the book holds a valid snapshot.
func (b *Book) IsLive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.live
}

// Sequence returns the current sequence, or false when the book is not live.
func (b *Book) Sequence() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequence, b.live
}

// Removed returns the ids removed since the last snapshot, oldest first.
// It is undefined before the first snapshot.
func (b *Book) Removed() ([]string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, false
	}
	return append([]string{}, b.removed...), true
}

// Trades returns the trade history since the last snapshot, oldest first.
func (b *Book) Trades() []domain.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.Trade{}, b.trades...)
}
