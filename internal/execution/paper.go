package execution

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"xbt_book/internal/domain"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// PaperTrader is an in-memory Trader for dry runs. Placing an order reserves
// its funds, cancelling releases them and Fill settles them into the other
// currency. Balances never go negative.
type PaperTrader struct {
	mu       sync.Mutex
	market   domain.Market
	balances map[quant.Currency]decimal.Decimal
	orders   map[string]paperOrder
	fills    []domain.OpenOrder
	nextID   uint64
	now      func() time.Time
}

type paperOrder struct {
	open     domain.OpenOrder
	seq      uint64
	reserved decimal.Decimal
}

// NewPaperTrader creates a paper exchange for market with empty balances.
func NewPaperTrader(market domain.Market) *PaperTrader {
	return &PaperTrader{
		market:   market,
		balances: make(map[quant.Currency]decimal.Decimal),
		orders:   make(map[string]paperOrder),
		now:      time.Now,
	}
}

// Deposit adds amount to the available balance of currency.
func (p *PaperTrader) Deposit(currency quant.Currency, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[currency] = p.balances[currency].Add(amount)
}

// Balance returns the available, unreserved balance of currency.
func (p *PaperTrader) Balance(currency quant.Currency) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[currency]
}

// Fills returns the orders settled so far, oldest first.
func (p *PaperTrader) Fills() []domain.OpenOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.fills)
}

// funding returns the currency and amount an order locks up.
func (p *PaperTrader) funding(side domain.Side, volume, price decimal.Decimal) (quant.Currency, decimal.Decimal) {
	if side == domain.SideBid {
		return p.market.Counter, volume.Mul(price)
	}
	return p.market.Base, volume
}

func (p *PaperTrader) PlaceOrder(ctx context.Context, side domain.Side, volume, price decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !side.Valid() {
		return "", fmt.Errorf("paper: invalid side %q", side)
	}
	if !volume.IsPositive() || !price.IsPositive() {
		return "", fmt.Errorf("paper: volume and price must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	currency, cost := p.funding(side, volume, price)
	available := p.balances[currency]
	if available.LessThan(cost) {
		return "", fmt.Errorf("paper: %s needs %s %s, have %s: %w", side, cost, currency, available, domain.ErrInsufficientBalance)
	}
	p.balances[currency] = available.Sub(cost)

	p.nextID++
	id := "PAPER-" + strconv.FormatUint(p.nextID, 10)
	p.orders[id] = paperOrder{
		open: domain.OpenOrder{
			ID:                id,
			Side:              side,
			LimitPrice:        price,
			LimitVolume:       volume,
			CreationTimestamp: p.now().UnixMilli(),
		},
		seq:      p.nextID,
		reserved: cost,
	}
	return id, nil
}

func (p *PaperTrader) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("paper: %s: %w", orderID, domain.ErrOrderNotFound)
	}
	currency, _ := p.funding(o.open.Side, o.open.LimitVolume, o.open.LimitPrice)
	p.balances[currency] = p.balances[currency].Add(o.reserved)
	delete(p.orders, orderID)
	return nil
}

func (p *PaperTrader) ListPendingOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	orders := make([]paperOrder, 0, len(p.orders))
	for _, o := range p.orders {
		orders = append(orders, o)
	}
	slices.SortFunc(orders, func(a, b paperOrder) int {
		return cmp.Compare(a.seq, b.seq)
	})

	open := make([]domain.OpenOrder, len(orders))
	for i, o := range orders {
		open[i] = o.open
	}
	return open, nil
}

// Fill settles a pending order completely at its limit price.
func (p *PaperTrader) Fill(orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("paper: %s: %w", orderID, domain.ErrOrderNotFound)
	}
	if o.open.Side == domain.SideBid {
		p.balances[p.market.Base] = p.balances[p.market.Base].Add(o.open.LimitVolume)
	} else {
		p.balances[p.market.Counter] = p.balances[p.market.Counter].Add(o.open.LimitVolume.Mul(o.open.LimitPrice))
	}
	delete(p.orders, orderID)
	p.fills = append(p.fills, o.open)
	return nil
}
