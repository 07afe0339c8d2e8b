package execution

import (
	"context"
	"fmt"
	"sync"

	"xbt_book/internal/book"
	"xbt_book/internal/domain"
	"xbt_book/internal/event"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// Exchange converts amount into the market's other currency with a limit
// order at the best price, ignoring our own orders, and waits until the order
// is seen resting on the book. A counter currency amount buys the base asset
// at the best bid; a base amount sells at the best ask.
//
// The wait ends with ctx; the returned order then only carries its id.
func (e *Executer) Exchange(ctx context.Context, amount quant.Amount) (domain.Order, error) {
	m := e.view.Market()

	var (
		side domain.Side
		pair *domain.Pair
	)
	switch amount.Currency() {
	case m.Base:
		side, pair = domain.SideAsk, m.SellPair()
	case m.Counter:
		side, pair = domain.SideBid, m.BuyPair()
	default:
		return domain.Order{}, fmt.Errorf("exchange %s: %w", amount, quant.ErrUnknownCurrency)
	}

	best, ok := e.view.BestPrice(book.Query{Pair: pair, Exclude: e.OwnOrderIDs()})
	if !ok || !best.IsFinite() {
		return domain.Order{}, fmt.Errorf("exchange %s: %w", amount, domain.ErrNoPrice)
	}
	price := best.Decimal()

	volume := amount.Decimal()
	if side == domain.SideBid {
		volume = volume.Div(price)
	}
	volume = volume.Truncate(4)
	if !volume.GreaterThan(decimal.Zero) {
		return domain.Order{}, fmt.Errorf("exchange %s: amount too small at %s", amount, price.StringFixed(2))
	}

	w := newOrderWaiter()
	n := e.view.Notifier()
	h := n.Subscribe(event.KindOrderCreated, w.observe)
	defer n.Unsubscribe(h)

	id, err := e.PlaceOrder(ctx, domain.Position{Side: side, Price: price, Volume: volume})
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange %s: %w", amount, err)
	}

	select {
	case o := <-w.wait(id):
		return o, nil
	case <-ctx.Done():
		return domain.Order{ID: id}, fmt.Errorf("exchange %s: waiting for order %s: %w", amount, id, ctx.Err())
	}
}

// orderWaiter buffers created orders until the id to wait for is known, since
// the book can report the order before the exchange answers the placement.
type orderWaiter struct {
	mu   sync.Mutex
	seen map[string]domain.Order
	want string
	done chan domain.Order
}

func newOrderWaiter() *orderWaiter {
	return &orderWaiter{seen: make(map[string]domain.Order), done: make(chan domain.Order, 1)}
}

func (w *orderWaiter) observe(n event.Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.want == "" {
		w.seen[n.Order.ID] = n.Order
		return
	}
	if n.Order.ID == w.want {
		select {
		case w.done <- n.Order:
		default:
		}
	}
}

func (w *orderWaiter) wait(id string) <-chan domain.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.want = id
	if o, ok := w.seen[id]; ok {
		w.done <- o
	}
	w.seen = nil
	return w.done
}
