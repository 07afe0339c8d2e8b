package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"xbt_book/internal/book"
	"xbt_book/internal/domain"
	"xbt_book/internal/feed"
	"xbt_book/internal/infra"
)

// Sequencer is the single consumer of the feed. It applies messages to the
// book strictly in arrival order and asks the transport for a fresh snapshot
// whenever the book rejects one.
type Sequencer struct {
	inbox    chan feed.Message
	book     *book.Book
	dumpPath string

	// Boundary: asks the transport to reconnect and deliver a new snapshot
	onResync func()

	// awaiting a snapshot; incremental updates are dropped meanwhile
	resyncPending bool

	metrics *infra.Metrics
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(inboxSize int, b *book.Book, dumpPath string, onResync func()) *Sequencer {
	return &Sequencer{
		inbox:    make(chan feed.Message, inboxSize),
		book:     b,
		dumpPath: dumpPath,
		onResync: onResync,
		metrics:  infra.GlobalMetrics,
	}
}

// SetResyncHook replaces the resync boundary. It must be called before Run.
func (s *Sequencer) SetResyncHook(fn func()) {
	s.onResync = fn
}

// Inbox returns the message channel. The transport sends decoded messages here.
func (s *Sequencer) Inbox() chan<- feed.Message {
	return s.inbox
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started", slog.String("market", s.book.Market().Code()))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case msg := <-s.inbox:
			s.process(msg)
		}
	}
}

func (s *Sequencer) process(msg feed.Message) {
	_, isSnapshot := msg.(*feed.Snapshot)
	if s.resyncPending && !isSnapshot {
		s.metrics.RecordDropped()
		return
	}

	start := time.Now()
	err := s.book.Apply(msg)
	if err == nil {
		s.resyncPending = false
		trades := 0
		if u, ok := msg.(*feed.Update); ok {
			trades = len(u.Trades)
		} else {
			s.metrics.RecordSnapshot()
		}
		s.metrics.RecordApplied(time.Since(start).Nanoseconds(), trades)
		return
	}

	s.metrics.RecordError()
	if !domain.NeedsResync(err) {
		slog.Error("Sequencer rejected message", slog.String("sequence", msg.Sequence()), slog.Any("error", err))
		return
	}

	logLevel := slog.LevelWarn
	if errors.Is(err, domain.ErrNotLive) {
		logLevel = slog.LevelInfo
	}
	slog.Log(context.Background(), logLevel, "Book out of sync, requesting snapshot",
		slog.String("sequence", msg.Sequence()),
		slog.Any("error", err),
	)
	s.resyncPending = true
	s.metrics.RecordResync()
	if s.onResync != nil {
		s.onResync()
	}
}

// DumpState writes the book projection to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	if filename == "" {
		filename = "panic_dump.json"
	}
	slog.Info("Dumping internal state...", slog.String("file", filename))

	st, live := s.book.Snapshot()
	removed, _ := s.book.Removed()
	data := struct {
		Live    bool        `json:"live"`
		State   *book.State `json:"state"`
		Removed []string    `json:"removed"`
		Trades  int         `json:"trades"`
	}{
		Live:    live,
		Removed: removed,
		Trades:  len(s.book.Trades()),
	}
	if live {
		data.State = &st
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
