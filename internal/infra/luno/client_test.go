package luno

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"xbt_book/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, domain.DefaultMarket, "key-id", "key-secret")
}

func TestClient_PlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/1/postorder", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key-id", user)
		assert.Equal(t, "key-secret", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "XBTZAR", r.PostForm.Get("pair"))
		assert.Equal(t, "BID", r.PostForm.Get("type"))
		assert.Equal(t, "0.0005", r.PostForm.Get("volume"))
		assert.Equal(t, "1202.00", r.PostForm.Get("price"))
		w.Write([]byte(`{"order_id":"BXMC2CJ7HNB88U4"}`))
	})

	id, err := c.PlaceOrder(context.Background(), domain.SideBid, decimal.RequireFromString("0.00050001"), decimal.NewFromInt(1202))
	require.NoError(t, err)
	assert.Equal(t, "BXMC2CJ7HNB88U4", id)
}

func TestClient_CancelOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/stoporder", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "BXMC2CJ7HNB88U4", r.PostForm.Get("order_id"))
		w.Write([]byte(`{"success":true}`))
	})
	require.NoError(t, c.CancelOrder(context.Background(), "BXMC2CJ7HNB88U4"))
}

func TestClient_ListPendingOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/1/listorders", r.URL.Path)
		assert.Equal(t, "XBTZAR", r.URL.Query().Get("pair"))
		assert.Equal(t, "PENDING", r.URL.Query().Get("state"))
		w.Write([]byte(`{"orders":[
			{"order_id":"A","creation_timestamp":1469031991000,"type":"BID","state":"PENDING","limit_price":"1202.00","limit_volume":"0.0010","base":"0.0004"},
			{"order_id":"B","creation_timestamp":1469031992000,"type":"ASK","state":"PENDING","limit_price":"1233.00","limit_volume":"0.0005","base":"0.00"},
			{"order_id":"C","creation_timestamp":1469031993000,"type":"STOP","state":"PENDING","limit_price":"1.00","limit_volume":"1","base":"0"}
		]}`))
	})

	orders, err := c.ListPendingOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "A", orders[0].ID)
	assert.Equal(t, domain.SideBid, orders[0].Side)
	assert.Equal(t, "0.0006", orders[0].LimitVolume.String())
	assert.Equal(t, int64(1469031991000), orders[0].CreationTimestamp)
	assert.Equal(t, domain.SideAsk, orders[1].Side)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retriable bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope","error_code":"ErrX"}`))
			})
			err := c.CancelOrder(context.Background(), "A")
			require.Error(t, err)
			var ne *domain.NetworkError
			assert.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.retriable, domain.IsRetriable(err))
		})
	}
}

func TestClient_CancelNotStopped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	})
	err := c.CancelOrder(context.Background(), "A")
	assert.True(t, domain.IsRetriable(err))
}
