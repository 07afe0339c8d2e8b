package execution

import (
	"context"

	"xbt_book/internal/book"
	"xbt_book/internal/domain"
	"xbt_book/internal/event"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// Trader is the exchange boundary. Implemented by the Luno REST client and
// by PaperTrader.
type Trader interface {
	PlaceOrder(ctx context.Context, side domain.Side, volume, price decimal.Decimal) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	ListPendingOrders(ctx context.Context) ([]domain.OpenOrder, error)
}

// OrderStore persists the ids of the orders we placed so they survive restarts.
type OrderStore interface {
	TrackOrder(o *domain.TrackedOrder) error
	UntrackOrder(orderID string) error
	TrackedOrders() ([]domain.TrackedOrder, error)
	RetainOnly(keep []string) (int64, error)
}

// BookView is the part of the order book the execution layer consults.
type BookView interface {
	Market() domain.Market
	Notifier() *event.Notifier
	BestPrice(q book.Query) (quant.Price, bool)
	IsMarketable(o domain.Order) bool
}
