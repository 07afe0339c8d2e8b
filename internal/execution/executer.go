package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"xbt_book/internal/domain"
	"xbt_book/internal/event"
	"xbt_book/internal/infra"
	"xbt_book/pkg/quant"
)

// Options tune the executer.
type Options struct {
	// NotMarketable refuses orders the book reports as marketable.
	NotMarketable bool
	// CancelRetries is how many times a retriable cancel failure is retried.
	CancelRetries int
	// Backoff returns the delay before retry n. Defaults to infra.CalculateBackoff.
	Backoff func(retry int) time.Duration
}

// Executer keeps the exchange's pending orders in line with the positions a
// strategy asks for, and remembers which orders it placed.
type Executer struct {
	trader  Trader
	view    BookView
	store   OrderStore
	opts    Options
	logger  *slog.Logger
	metrics *infra.Metrics

	ops sync.Mutex // serializes exchange round trips

	mu      sync.RWMutex
	own     map[string]domain.TrackedOrder
	pending []domain.OpenOrder
	synced  bool
}

// NewExecuter creates an executer. store may be nil, in which case own orders
// are only remembered in memory.
func NewExecuter(trader Trader, view BookView, store OrderStore, opts Options) (*Executer, error) {
	if opts.Backoff == nil {
		opts.Backoff = infra.CalculateBackoff
	}
	if opts.CancelRetries < 0 {
		opts.CancelRetries = 0
	}
	e := &Executer{
		trader:  trader,
		view:    view,
		store:   store,
		opts:    opts,
		logger:  slog.Default().With("module", "executer"),
		metrics: infra.GlobalMetrics,
		own:     make(map[string]domain.TrackedOrder),
	}
	if store != nil {
		tracked, err := store.TrackedOrders()
		if err != nil {
			return nil, fmt.Errorf("load tracked orders: %w", err)
		}
		for _, o := range tracked {
			e.own[o.OrderID] = o
		}
	}
	return e, nil
}

// Attach loads the pending orders once, on the first update the book applies.
// The load runs on its own goroutine so the sequencer is never blocked on the
// exchange.
func (e *Executer) Attach(ctx context.Context) event.Handle {
	return e.view.Notifier().Once(event.KindUpdated, func(event.Notification) {
		go func() {
			if err := e.SyncPending(ctx); err != nil {
				e.logger.Error("failed to load pending orders", "error", err)
			}
		}()
	})
}

// SyncPending refreshes the pending order list and forgets tracked orders the
// exchange no longer reports.
func (e *Executer) SyncPending(ctx context.Context) error {
	e.ops.Lock()
	defer e.ops.Unlock()
	_, err := e.refreshPending(ctx)
	return err
}

func (e *Executer) refreshPending(ctx context.Context) ([]domain.OpenOrder, error) {
	open, err := e.trader.ListPendingOrders(ctx)
	if err != nil {
		e.metrics.RecordError()
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.ID)
	}

	e.mu.Lock()
	e.pending = slices.Clone(open)
	e.synced = true
	for id := range e.own {
		if !slices.Contains(ids, id) {
			delete(e.own, id)
		}
	}
	e.mu.Unlock()

	if e.store != nil {
		n, err := e.store.RetainOnly(ids)
		if err != nil {
			e.logger.Warn("failed to prune tracked orders", "error", err)
		} else if n > 0 {
			e.logger.Info("forgot settled orders", "count", n)
		}
	}
	return open, nil
}

// Pending returns the pending orders seen at the last refresh. It reports
// false until the first refresh completed.
func (e *Executer) Pending() ([]domain.OpenOrder, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.pending), e.synced
}

// OwnOrderIDs returns the ids of the orders we placed, sorted.
func (e *Executer) OwnOrderIDs() []string {
	e.mu.RLock()
	ids := make([]string, 0, len(e.own))
	for id := range e.own {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// PlaceOrder places a single limit order for p.
func (e *Executer) PlaceOrder(ctx context.Context, p domain.Position) (string, error) {
	e.ops.Lock()
	defer e.ops.Unlock()
	return e.place(ctx, p)
}

func (e *Executer) place(ctx context.Context, p domain.Position) (string, error) {
	if !p.Side.Valid() {
		return "", fmt.Errorf("place order: invalid side %q", p.Side)
	}
	volume := p.Volume.Round(4)
	if !volume.IsPositive() {
		return "", fmt.Errorf("place order: volume %s rounds to zero", p.Volume)
	}
	if e.opts.NotMarketable && e.view.IsMarketable(domain.Order{Side: p.Side, Price: p.Price, Volume: volume}) {
		return "", fmt.Errorf("place %s %s at %s: %w", p.Side, volume, p.Price.StringFixed(2), domain.ErrOrderMarketable)
	}

	id, err := e.trader.PlaceOrder(ctx, p.Side, volume, p.Price)
	if err != nil {
		e.metrics.RecordError()
		return "", fmt.Errorf("place %s order: %w", p.Side, err)
	}

	e.track(domain.TrackedOrder{
		OrderID:   id,
		Side:      p.Side,
		Price:     p.Price,
		Volume:    volume,
		CreatedAt: time.Now(),
	})
	e.metrics.RecordOrderPlaced()
	e.logger.Info("order placed", "order_id", id, "side", p.Side, "price", p.Price.StringFixed(2), "volume", volume.String())
	return id, nil
}

// CancelOrder stops an order, retrying retriable failures with backoff. An
// order the exchange no longer knows counts as cancelled.
func (e *Executer) CancelOrder(ctx context.Context, orderID string) error {
	e.ops.Lock()
	defer e.ops.Unlock()
	return e.cancel(ctx, orderID)
}

func (e *Executer) cancel(ctx context.Context, orderID string) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = e.trader.CancelOrder(ctx, orderID)
		if err == nil || errors.Is(err, domain.ErrOrderNotFound) {
			break
		}
		if !domain.IsRetriable(err) || attempt >= e.opts.CancelRetries {
			e.metrics.RecordError()
			return fmt.Errorf("cancel order %s: %w", orderID, err)
		}
		delay := e.opts.Backoff(attempt)
		e.logger.Warn("cancel failed, retrying", "order_id", orderID, "attempt", attempt+1, "delay", delay, "error", err)
		if !infra.Sleep(ctx, delay) {
			return fmt.Errorf("cancel order %s: %w", orderID, ctx.Err())
		}
	}

	e.untrack(orderID)
	if err == nil {
		e.metrics.RecordOrderCancelled()
		e.logger.Info("order cancelled", "order_id", orderID)
	}
	return nil
}

// UpdatePositions reconciles the pending orders with positions. For each
// position the volume already on order at the same side and whole price is
// compared with the target: the newest orders are cancelled while there is
// too much, and the shortfall is placed as one new order. Pending orders that
// match no position are cancelled.
func (e *Executer) UpdatePositions(ctx context.Context, positions []domain.Position) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	open, err := e.refreshPending(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range positions {
		var matched []domain.OpenOrder
		matched, open = partition(open, p)
		if err := e.reconcile(ctx, p, matched); err != nil {
			errs = append(errs, err)
		}
	}
	for _, o := range open {
		if err := e.cancel(ctx, o.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Executer) reconcile(ctx context.Context, p domain.Position, matched []domain.OpenOrder) error {
	target := quant.ToSats(p.Volume)
	var onOrder quant.Sats
	for _, o := range matched {
		onOrder = onOrder.Add(quant.ToSats(o.LimitVolume))
	}

	for onOrder > target && len(matched) > 0 {
		i := newest(matched)
		o := matched[i]
		matched = slices.Delete(matched, i, i+1)
		if err := e.cancel(ctx, o.ID); err != nil {
			return err
		}
		onOrder = onOrder.Sub(quant.ToSats(o.LimitVolume))
	}

	delta := target.Sub(onOrder)
	if delta <= 0 {
		return nil
	}
	volume := delta.Decimal().Round(4)
	if volume.IsZero() {
		e.logger.Debug("shortfall below order precision", "side", p.Side, "price", p.Price.StringFixed(2), "sats", int64(delta))
		return nil
	}
	_, err := e.place(ctx, domain.Position{Side: p.Side, Price: p.Price, Volume: volume})
	return err
}

// partition splits open into the orders resting at p's side and whole price
// and the rest.
func partition(open []domain.OpenOrder, p domain.Position) (matched, rest []domain.OpenOrder) {
	whole := p.Price.IntPart()
	for _, o := range open {
		if o.Side == p.Side && o.LimitPrice.IntPart() == whole {
			matched = append(matched, o)
		} else {
			rest = append(rest, o)
		}
	}
	return matched, rest
}

// newest returns the index of the most recently created order. Later entries
// win ties.
func newest(orders []domain.OpenOrder) int {
	idx := 0
	for i, o := range orders {
		if o.CreationTimestamp >= orders[idx].CreationTimestamp {
			idx = i
		}
	}
	return idx
}

func (e *Executer) track(o domain.TrackedOrder) {
	e.mu.Lock()
	e.own[o.OrderID] = o
	e.mu.Unlock()
	if e.store == nil {
		return
	}
	if err := e.store.TrackOrder(&o); err != nil {
		e.logger.Warn("failed to persist order", "order_id", o.OrderID, "error", err)
	}
}

func (e *Executer) untrack(orderID string) {
	e.mu.Lock()
	_, ok := e.own[orderID]
	delete(e.own, orderID)
	e.mu.Unlock()
	if !ok || e.store == nil {
		return
	}
	if err := e.store.UntrackOrder(orderID); err != nil {
		e.logger.Warn("failed to forget order", "order_id", orderID, "error", err)
	}
}
