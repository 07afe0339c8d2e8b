package book

import (
	"encoding/json"
	"testing"

	"xbt_book/internal/domain"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPrice(t *testing.T, want string, got quant.Price) {
	t.Helper()
	assert.True(t, quant.NewPrice(decimal.RequireFromString(want)).Equal(got), "expected price %s, got %s", want, got)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}

func TestTicker(t *testing.T) {
	b := New(domain.DefaultMarket)
	_, ok := b.Ticker()
	assert.False(t, ok)

	require.NoError(t, b.Apply(decode(t, initialMessage)))
	tk, ok := b.Ticker()
	require.True(t, ok)
	assertPrice(t, "1234", tk.Ask)
	assertPrice(t, "1201", tk.Bid)
	assert.Nil(t, tk.Timestamp)
	assert.False(t, tk.RollingVolume.Valid)
	assert.False(t, tk.LastTrade.Valid)

	applyUpdates(t, b, len(updates))
	tk, ok = b.Ticker()
	require.True(t, ok)
	assertPrice(t, "1233", tk.Ask)
	assertPrice(t, "1203", tk.Bid)
	require.NotNil(t, tk.Timestamp)
	assert.Equal(t, int64(1469031999), *tk.Timestamp)
	require.True(t, tk.RollingVolume.Valid)
	assert.Equal(t, "1.330", tk.RollingVolume.Decimal.StringFixed(3))
	require.True(t, tk.LastTrade.Valid)
	assertDecimal(t, "1200", tk.LastTrade.Decimal)

	raw, err := json.Marshal(tk)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ask":"1233","timestamp":1469031999,"bid":"1203","rolling_24_hour_volume":"1.330","last_trade":"1200.00"}`, string(raw))
}

func TestTicker_Exclude(t *testing.T) {
	b := newLiveBook(t)
	tk, ok := b.Ticker("23298343")
	require.True(t, ok)
	assertPrice(t, "1237", tk.Ask)
	assertPrice(t, "1201", tk.Bid)

	applyUpdates(t, b, len(updates))
	tk, _ = b.Ticker("12345683", "12345680", "12345684", "12345678", "12345679")
	assertPrice(t, "1234", tk.Ask)
	assertPrice(t, "1199", tk.Bid)
	assert.Equal(t, "1.330", tk.RollingVolume.Decimal.StringFixed(3))
}

func TestTicker_EmptySides(t *testing.T) {
	b := New(domain.DefaultMarket)
	require.NoError(t, b.Apply(decode(t, `{"sequence":"1","asks":[],"bids":[],"timestamp":5}`)))
	tk, ok := b.Ticker()
	require.True(t, ok)
	assert.True(t, tk.Ask.IsPosInf())
	assert.True(t, tk.Bid.IsNegInf())

	raw, err := json.Marshal(tk)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ask":"+Inf","timestamp":5,"bid":"-Inf","rolling_24_hour_volume":null,"last_trade":null}`, string(raw))
}

func TestMinAskPrice(t *testing.T) {
	b := New(domain.DefaultMarket)
	_, ok := b.MinAskPrice()
	assert.False(t, ok)
	_, ok = b.MinAskPrice("23298343")
	assert.False(t, ok)

	require.NoError(t, b.Apply(decode(t, initialMessage)))
	p, _ := b.MinAskPrice()
	assertPrice(t, "1234", p)
	p, _ = b.MinAskPrice("23298343")
	assertPrice(t, "1237", p)

	want := []string{"1234", "1234", "1234", "1234", "1234", "1233", "1233", "1233", "1233"}
	for i, w := range want {
		applyUpdatesFrom(t, b, i)
		p, _ = b.MinAskPrice()
		assertPrice(t, w, p)
		if i == 5 {
			p, _ = b.MinAskPrice("12345683")
			assertPrice(t, "1234", p)
		}
	}
	p, _ = b.MinAskPrice("12345683", "12345680", "23298343")
	assertPrice(t, "1237", p)
}

func applyUpdatesFrom(t *testing.T, b *Book, i int) {
	t.Helper()
	require.NoError(t, b.Apply(decode(t, updates[i])))
}

func TestMaxBidPrice_EmptySide(t *testing.T) {
	b := New(domain.DefaultMarket)
	require.NoError(t, b.Apply(decode(t, `{"sequence":"1","asks":[{"id":"1","price":"10","volume":"1"}],"bids":[]}`)))
	p, ok := b.MaxBidPrice()
	require.True(t, ok)
	assert.True(t, p.IsNegInf())
}

func TestBestPrice(t *testing.T) {
	b := New(domain.DefaultMarket)
	m := domain.DefaultMarket

	checkPrices := func(bid, mid, ask string) {
		t.Helper()
		p, ok := b.BestPrice(Query{Pair: m.BuyPair()})
		require.True(t, ok)
		assertPrice(t, bid, p)
		p, ok = b.BestPrice(Query{})
		require.True(t, ok)
		assertPrice(t, mid, p)
		p, ok = b.BestPrice(Query{Pair: m.SellPair()})
		require.True(t, ok)
		assertPrice(t, ask, p)
	}

	_, ok := b.BestPrice(Query{})
	assert.False(t, ok)

	require.NoError(t, b.Apply(decode(t, initialMessage)))
	checkPrices("1201", "1217.5", "1234")

	want := [][3]string{
		{"1202", "1218", "1234"},
		{"1202", "1218", "1234"},
		{"1202", "1218", "1234"},
		{"1202", "1218", "1234"},
		{"1202", "1218", "1234"},
		{"1202", "1217.5", "1233"},
		{"1203", "1218", "1233"},
		{"1203", "1218", "1233"},
		{"1203", "1218", "1233"},
	}
	for i, w := range want {
		applyUpdatesFrom(t, b, i)
		checkPrices(w[0], w[1], w[2])
	}

	for _, pair := range []domain.Pair{
		{From: "XBT", To: "ZAR1"},
		{From: "XBT", To: "1ZAR"},
		{From: "XBT1", To: "ZAR"},
		{From: "1XBT", To: "ZAR"},
	} {
		_, ok := b.BestPrice(Query{Pair: &pair})
		assert.False(t, ok, "pair %v", pair)
	}
}

func TestBestPrice_Exclude(t *testing.T) {
	b := New(domain.DefaultMarket)
	q := Query{Pair: domain.DefaultMarket.BuyPair(), Exclude: []string{"3498282", "3498283"}}
	_, ok := b.BestPrice(q)
	assert.False(t, ok)

	require.NoError(t, b.Apply(decode(t, initialMessage)))
	p, _ := b.BestPrice(q)
	assertPrice(t, "1199", p)

	applyUpdates(t, b, 7)
	q.Exclude = []string{"12345684"}
	p, _ = b.BestPrice(q)
	assertPrice(t, "1202", p)

	require.NoError(t, b.Apply(decode(t, updates[7])))
	require.NoError(t, b.Apply(decode(t, updates[8])))
	p, _ = b.BestPrice(q)
	assertPrice(t, "1202", p)
}

func TestBestPrice_MidExclude(t *testing.T) {
	b := New(domain.DefaultMarket)
	require.NoError(t, b.Apply(decode(t, initialMessage)))

	p, ok := b.BestPrice(Query{})
	require.True(t, ok)
	assertPrice(t, "1217.5", p)

	p, ok = b.BestPrice(Query{Exclude: []string{"3498282", "23298343"}})
	require.True(t, ok)
	assertPrice(t, "1218.5", p)
}

func TestBestPrice_MidWithEmptySides(t *testing.T) {
	b := New(domain.DefaultMarket)
	require.NoError(t, b.Apply(decode(t, `{"sequence":"1","asks":[],"bids":[{"id":"1","price":"10","volume":"1"}]}`)))
	p, ok := b.BestPrice(Query{})
	require.True(t, ok)
	assert.True(t, p.IsPosInf())

	require.NoError(t, b.Apply(decode(t, `{"sequence":"1","asks":[],"bids":[]}`)))
	_, ok = b.BestPrice(Query{})
	assert.False(t, ok)
}

func TestDirection(t *testing.T) {
	b := New(domain.DefaultMarket)
	assert.Equal(t, domain.DirectionNone, b.Direction(nil))
	assert.Equal(t, domain.DirectionBid, b.Direction(&domain.Pair{From: quant.ZAR, To: quant.XBT}))
	assert.Equal(t, domain.DirectionAsk, b.Direction(&domain.Pair{From: quant.XBT, To: quant.ZAR}))
	assert.Equal(t, domain.DirectionUndefined, b.Direction(&domain.Pair{From: "XBT1", To: quant.ZAR}))
	assert.Equal(t, domain.DirectionUndefined, b.Direction(&domain.Pair{From: quant.XBT, To: "ZAR1"}))
}

func TestBidDepth(t *testing.T) {
	b := New(domain.DefaultMarket)
	_, ok := b.BidDepth(quant.Price{})
	assert.False(t, ok)
	_, ok = b.BidDepth(quant.NewPrice(decimal.NewFromInt(1200)))
	assert.False(t, ok)

	require.NoError(t, b.Apply(decode(t, initialMessage)))
	_, ok = b.BidDepth(quant.Price{})
	assert.False(t, ok, "unset threshold")
	_, ok = b.BidDepth(quant.NewPrice(decimal.NewFromInt(0)))
	assert.False(t, ok, "zero threshold")

	d, ok := b.BidDepth(quant.PosInf())
	require.True(t, ok)
	assertDecimal(t, "0", d)
	d, _ = b.BidDepth(quant.NewPrice(decimal.NewFromInt(1200)))
	assertDecimal(t, "2.44", d)
	d, _ = b.BidDepth(quant.NegInf())
	assertDecimal(t, "4.88", d)

	for _, id := range []string{"3498282", "3498283", "3498284", "3498285"} {
		d, _ = b.BidDepth(quant.NegInf(), id)
		assertDecimal(t, "3.66", d)
	}
	d, _ = b.BidDepth(quant.NegInf(), "3498282", "3498283", "7498284", "7498285")
	assertDecimal(t, "2.44", d)
}

func TestAskDepth(t *testing.T) {
	b := New(domain.DefaultMarket)
	_, ok := b.AskDepth(quant.Price{})
	assert.False(t, ok)
	_, ok = b.AskDepth(quant.NewPrice(decimal.NewFromInt(1234)))
	assert.False(t, ok)

	require.NoError(t, b.Apply(decode(t, initialMessage)))
	_, ok = b.AskDepth(quant.Price{})
	assert.False(t, ok)

	d, ok := b.AskDepth(quant.NegInf())
	require.True(t, ok)
	assertDecimal(t, "0", d)
	d, _ = b.AskDepth(quant.NewPrice(decimal.NewFromInt(1234)))
	assertDecimal(t, "0.93", d)
	d, _ = b.AskDepth(quant.PosInf())
	assertDecimal(t, "2.82", d)
	d, _ = b.AskDepth(quant.PosInf(), "23298344")
	assertDecimal(t, "1.88", d)
	d, _ = b.AskDepth(quant.PosInf(), "3498282", "3498283", "7498284", "7498285")
	assertDecimal(t, "2.82", d)
}

func TestAskDepth_RoundsEachStep(t *testing.T) {
	b := New(domain.DefaultMarket)
	require.NoError(t, b.Apply(decode(t, `{"sequence":"1","asks":[{"id":"1","price":"10","volume":"0.004"},{"id":"2","price":"10","volume":"0.004"}],"bids":[{"id":"3","price":"9","volume":"0.004"},{"id":"4","price":"9","volume":"0.004"}]}`)))
	d, _ := b.AskDepth(quant.PosInf())
	assertDecimal(t, "0", d)
	d, _ = b.BidDepth(quant.NegInf())
	assertDecimal(t, "0.008", d)
}

func TestIsMarketable(t *testing.T) {
	b := New(domain.DefaultMarket)
	order := func(side domain.Side, price, volume string) domain.Order {
		o := domain.Order{Side: side, Price: decimal.RequireFromString(price)}
		if volume != "" {
			o.Volume = decimal.RequireFromString(volume)
		}
		return o
	}
	assert.False(t, b.IsMarketable(order(domain.SideAsk, "1201", "0")), "not live")

	require.NoError(t, b.Apply(decode(t, initialMessage)))

	assert.True(t, b.IsMarketable(order(domain.SideAsk, "1201", "0")))
	assert.True(t, b.IsMarketable(order(domain.SideAsk, "1201", "1.22")))
	assert.False(t, b.IsMarketable(order(domain.SideAsk, "1201", "1.23")))
	assert.False(t, b.IsMarketable(order(domain.SideAsk, "1202", "")))
	assert.True(t, b.IsMarketable(order(domain.SideAsk, "1200", "2.44")))

	assert.True(t, b.IsMarketable(order(domain.SideBid, "1234", "0")))
	assert.True(t, b.IsMarketable(order(domain.SideBid, "1234", "0.93")))
	assert.False(t, b.IsMarketable(order(domain.SideBid, "1234", "0.94")))
	assert.False(t, b.IsMarketable(order(domain.SideBid, "1233", "")))

	assert.False(t, b.IsMarketable(order("", "1234", "0")))
}
