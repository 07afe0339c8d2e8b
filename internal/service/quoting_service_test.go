package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"xbt_book/internal/domain"
	"xbt_book/internal/feed"
	"xbt_book/internal/strategy"
)

type recordingUpdater struct {
	mu    sync.Mutex
	calls [][]domain.Position
	own   []string
}

func (r *recordingUpdater) UpdatePositions(_ context.Context, positions []domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, positions)
	return nil
}

func (r *recordingUpdater) OwnOrderIDs() []string { return r.own }

func (r *recordingUpdater) last() ([]domain.Position, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil, 0
	}
	return r.calls[len(r.calls)-1], len(r.calls)
}

func TestQuotingService_QuotesAfterUpdates(t *testing.T) {
	b := newBook(t)
	exec := &recordingUpdater{own: []string{"own-ask"}}
	svc := NewQuotingService(b, strategy.NewSpreadQuoter(d("0.0005"), true), exec, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	var (
		positions []domain.Position
		calls     int
	)
	seq := 11
	deadline := time.After(time.Second)
	for calls == 0 {
		// Keep the book moving until the loop has subscribed.
		if err := b.Apply(&feed.Update{Seq: strconv.Itoa(seq), Timestamp: int64(seq)}); err != nil {
			t.Fatalf("update: %v", err)
		}
		seq++
		select {
		case <-deadline:
			t.Fatal("quoting loop never ran")
		case <-time.After(5 * time.Millisecond):
		}
		positions, calls = exec.last()
	}

	if len(positions) != 2 {
		t.Fatalf("Expected a bid and an ask, got %+v", positions)
	}
	// own ask at 1205 is ignored: bid 1203, ask 1210
	if positions[0].Side != domain.SideBid || positions[0].Price.StringFixed(2) != "1204.00" {
		t.Errorf("Unexpected bid %+v", positions[0])
	}
	if positions[1].Side != domain.SideAsk || positions[1].Price.StringFixed(2) != "1209.00" {
		t.Errorf("Unexpected ask %+v", positions[1])
	}
}

func TestQuotingService_SkipsWhileNotLive(t *testing.T) {
	b := newBook(t)
	b.Flush()
	exec := &recordingUpdater{}
	svc := NewQuotingService(b, strategy.NewSpreadQuoter(d("0.0005"), false), exec, 0)

	svc.quote(context.Background())
	if _, calls := exec.last(); calls != 0 {
		t.Errorf("Expected no reconciliation while the book is flushed, got %d", calls)
	}
}
