package book

import (
	"fmt"
	"testing"

	"xbt_book/internal/domain"
	"xbt_book/internal/feed"

	"github.com/shopspring/decimal"
)

// BenchmarkApply measures the create/trade/delete hot path on a live book.
func BenchmarkApply(b *testing.B) {
	bk := New(domain.DefaultMarket)
	snap := &feed.Snapshot{Seq: "0"}
	for i := 0; i < 500; i++ {
		snap.Asks = append(snap.Asks, feed.Entry{ID: fmt.Sprintf("a%d", i), Price: decimal.NewFromInt(int64(1300 + i)), Volume: decimal.NewFromInt(1)})
		snap.Bids = append(snap.Bids, feed.Entry{ID: fmt.Sprintf("b%d", i), Price: decimal.NewFromInt(int64(1200 - i)), Volume: decimal.NewFromInt(1)})
	}
	if err := bk.Apply(snap); err != nil {
		b.Fatal(err)
	}

	msgs := make([]*feed.Update, b.N)
	for i := range msgs {
		id := fmt.Sprintf("n%d", i)
		msgs[i] = &feed.Update{
			Seq:       fmt.Sprint(i + 1),
			Timestamp: int64(i),
			Create:    &feed.CreateEntry{OrderID: id, Side: domain.SideBid, Price: decimal.NewFromInt(1250), Volume: decimal.RequireFromString("0.5")},
			Trades:    []feed.TradeEntry{{OrderID: id, Base: decimal.RequireFromString("0.1"), Counter: decimal.NewFromInt(125)}},
			Delete:    &feed.DeleteEntry{OrderID: id},
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := bk.Apply(msgs[i]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTicker(b *testing.B) {
	bk := newLiveBook(b)
	applyUpdates(b, bk, len(updates))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bk.Ticker("12345683")
	}
}
