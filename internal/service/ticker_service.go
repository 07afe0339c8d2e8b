package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"xbt_book/internal/book"
	"xbt_book/internal/event"
	"xbt_book/internal/infra"
)

// TickerSource is a book that can compute tickers and report changes.
type TickerSource interface {
	Ticker(exclude ...string) (book.Ticker, bool)
	Notifier() *event.Notifier
}

// TickerService caches the latest ticker, recomputed on every book change.
type TickerService struct {
	mu      sync.RWMutex
	ticker  book.Ticker
	ok      bool
	updates uint64

	source   TickerSource
	exclude  func() []string
	interval time.Duration
	handles  []event.Handle
	logger   *slog.Logger
}

// NewTickerService creates a ticker service. exclude, when not nil, supplies
// the order ids left out of every computation.
func NewTickerService(source TickerSource, interval time.Duration, exclude func() []string) *TickerService {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickerService{
		source:   source,
		exclude:  exclude,
		interval: interval,
		logger:   slog.Default().With("module", "ticker"),
	}
}

// Start subscribes to book changes. Calling Start twice has no extra effect.
func (s *TickerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) > 0 {
		return
	}
	n := s.source.Notifier()
	s.handles = append(s.handles,
		n.Subscribe(event.KindInitialized, s.refresh),
		n.Subscribe(event.KindUpdated, s.refresh),
	)
}

// Stop unsubscribes from the book.
func (s *TickerService) Stop() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	n := s.source.Notifier()
	for _, h := range handles {
		n.Unsubscribe(h)
	}
}

// refresh runs on the goroutine that applies book messages.
func (s *TickerService) refresh(event.Notification) {
	var exclude []string
	if s.exclude != nil {
		exclude = s.exclude()
	}
	t, ok := s.source.Ticker(exclude...)

	s.mu.Lock()
	s.ticker, s.ok = t, ok
	s.updates++
	s.mu.Unlock()
}

// Latest returns the cached ticker. It reports false before the book went
// live or after it was flushed.
func (s *TickerService) Latest() (book.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker, s.ok
}

// Updates returns how many book changes have been observed.
func (s *TickerService) Updates() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// Run logs the cached ticker and the process metrics every interval until
// ctx is done.
func (s *TickerService) Run(ctx context.Context) {
	s.Start()
	defer s.Stop()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.report()
		}
	}
}

func (s *TickerService) report() {
	m := infra.GlobalMetrics.Snapshot()
	metrics := slog.Group("metrics",
		slog.Uint64("applied", m.MessagesApplied),
		slog.Uint64("resyncs", m.Resyncs),
		slog.Uint64("trades", m.Trades),
		slog.Int64("avg_latency_ns", m.AvgLatencyNs),
	)

	t, ok := s.Latest()
	if !ok {
		s.logger.Info("book not live", metrics)
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		s.logger.Error("failed to encode ticker", "error", err)
		return
	}
	s.logger.Info("ticker", slog.Any("ticker", json.RawMessage(raw)), metrics)
}
