package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"xbt_book/internal/book"
	"xbt_book/internal/engine"
	"xbt_book/internal/execution"
	"xbt_book/internal/infra"
	"xbt_book/internal/infra/luno"
	"xbt_book/internal/infra/storage"
	"xbt_book/internal/service"
	"xbt_book/internal/strategy"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config    *infra.Config
	Storage   *storage.Storage
	Book      *book.Book
	Sequencer *engine.Sequencer
	Stream    *luno.Stream
	Ticker    *service.TickerService

	// Set only when trading is enabled.
	Executer *execution.Executer
	Quoting  *service.QuotingService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{ConfigPath: configPath}
}

// Initialize loads the configuration and wires every component. Nothing
// touches the network until Run.
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("bootstrapping", slog.String("app", cfg.App.Name), slog.String("pair", cfg.MarketPair().Code()))

	// 3. Book, sequencer and stream
	b.Book = book.New(cfg.MarketPair())
	b.Sequencer = engine.NewSequencer(cfg.Engine.InboxSize, b.Book, cfg.Engine.DumpPath, nil)
	b.Stream = luno.NewStream(cfg.StreamURL(), luno.Credentials{
		APIKeyID:     cfg.API.Luno.APIKeyID,
		APIKeySecret: cfg.API.Luno.APIKeySecret,
	}, b.Sequencer.Inbox())
	b.Sequencer.SetResyncHook(b.Stream.Resync)

	// 4. Trading
	var exclude func() []string
	if cfg.Trading.Enabled {
		if err := b.initTrading(); err != nil {
			b.Close()
			return err
		}
		exclude = b.Executer.OwnOrderIDs
	}

	b.Ticker = service.NewTickerService(b.Book, time.Duration(cfg.Ticker.LogIntervalMS)*time.Millisecond, exclude)
	return nil
}

func (b *Bootstrap) initTrading() error {
	cfg := b.Config

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	b.Storage = store
	slog.Info("order storage ready", slog.String("path", cfg.Storage.Path))

	var trader execution.Trader
	if cfg.Trading.Paper {
		paper := execution.NewPaperTrader(cfg.MarketPair())
		paper.Deposit(cfg.MarketPair().Base, cfg.Trading.PaperBase)
		paper.Deposit(cfg.MarketPair().Counter, cfg.Trading.PaperCounter)
		trader = paper
		slog.Info("paper trading",
			slog.String("base", cfg.Trading.PaperBase.String()),
			slog.String("counter", cfg.Trading.PaperCounter.String()),
		)
	} else {
		trader = luno.NewClient(cfg.API.Luno.RestURL, cfg.MarketPair(), cfg.API.Luno.APIKeyID, cfg.API.Luno.APIKeySecret)
	}

	exec, err := execution.NewExecuter(trader, b.Book, store, execution.Options{
		NotMarketable: cfg.Trading.NotMarketable,
		CancelRetries: cfg.Trading.CancelRetries,
	})
	if err != nil {
		return err
	}
	b.Executer = exec

	quoter := strategy.NewSpreadQuoter(cfg.Trading.Volume, cfg.Trading.NotMarketable)
	b.Quoting = service.NewQuotingService(b.Book, quoter, exec, time.Duration(cfg.Trading.QuoteIntervalMS)*time.Millisecond)
	return nil
}

// Run starts every component and blocks until ctx is done.
func (b *Bootstrap) Run(ctx context.Context) error {
	go b.Sequencer.Run(ctx)
	slog.InfoContext(ctx, "sequencer started")

	b.Ticker.Start()
	go b.Ticker.Run(ctx)

	if b.Executer != nil {
		b.Executer.Attach(ctx)
		go b.Quoting.Run(ctx)
		slog.InfoContext(ctx, "quoting started", slog.String("volume", b.Config.Trading.Volume.String()))
	}

	if err := b.Stream.Connect(ctx); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer b.Stream.Disconnect()
	slog.InfoContext(ctx, "stream started", slog.String("url", b.Config.StreamURL()))

	<-ctx.Done()
	return nil
}

// Close releases resources opened by Initialize.
func (b *Bootstrap) Close() error {
	if b.Storage != nil {
		return b.Storage.Close()
	}
	return nil
}
