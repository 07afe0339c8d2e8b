package service

import (
	"context"
	"log/slog"
	"time"

	"xbt_book/internal/domain"
	"xbt_book/internal/event"
	"xbt_book/internal/infra"
	"xbt_book/internal/strategy"
)

// QuotingView is the book as seen by the quoting loop.
type QuotingView interface {
	strategy.BookView
	Notifier() *event.Notifier
}

// PositionUpdater reconciles desired positions with the exchange.
type PositionUpdater interface {
	UpdatePositions(ctx context.Context, positions []domain.Position) error
	OwnOrderIDs() []string
}

// QuotingService runs the strategy after book updates and hands its positions
// to the executer. Updates arriving while a reconciliation is in flight are
// coalesced into one more run.
type QuotingService struct {
	view     QuotingView
	strategy strategy.Strategy
	exec     PositionUpdater
	interval time.Duration
	wake     chan struct{}
	logger   *slog.Logger
}

// NewQuotingService creates the loop. interval is the minimum pause between
// two reconciliations.
func NewQuotingService(view QuotingView, strat strategy.Strategy, exec PositionUpdater, interval time.Duration) *QuotingService {
	return &QuotingService{
		view:     view,
		strategy: strat,
		exec:     exec,
		interval: interval,
		wake:     make(chan struct{}, 1),
		logger:   slog.Default().With("module", "quoting"),
	}
}

func (s *QuotingService) signal(event.Notification) {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (s *QuotingService) Run(ctx context.Context) {
	n := s.view.Notifier()
	h := n.Subscribe(event.KindUpdated, s.signal)
	defer n.Unsubscribe(h)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		s.quote(ctx)
		if s.interval > 0 && !infra.Sleep(ctx, s.interval) {
			return
		}
	}
}

func (s *QuotingService) quote(ctx context.Context) {
	positions := s.strategy.OnMarketUpdate(s.view, s.exec.OwnOrderIDs())
	if positions == nil {
		return
	}
	if err := s.exec.UpdatePositions(ctx, positions); err != nil {
		s.logger.Warn("reconciliation incomplete", "error", err)
	}
}
