package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

const tradeJSON = `{"proxyWallet":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed","side":"BUY",
"asset":"123","conditionId":"0xmarket","size":100,"price":0.42,"timestamp":1767268800,
"outcome":"Yes","transactionHash":"0xabc"}`

func TestTradeMessageRaw(t *testing.T) {
	var m TradeMessage
	require.NoError(t, json.Unmarshal([]byte(tradeJSON), &m))
	raw := m.Raw()
	assert.Equal(t, "0xmarket", raw.MarketID)
	assert.Equal(t, "100", raw.Size)
	assert.Equal(t, "0.42", raw.Price)
	assert.Equal(t, int64(1767268800), raw.Timestamp)
	assert.Equal(t, "Yes", raw.Outcome)
}

func TestDispatchFiltersTopicsAndBatches(t *testing.T) {
	var got []TradeMessage
	handle := func(m TradeMessage) { got = append(got, m) }

	dispatch([]byte("PONG"), handle)
	dispatch([]byte("[]"), handle)
	dispatch([]byte(`{"topic":"comments","type":"comment_created","payload":{}}`), handle)
	dispatch([]byte(`{"topic":"activity","type":"trades","payload":`+tradeJSON+`}`), handle)
	dispatch([]byte(`[{"topic":"activity","type":"trades","payload":`+tradeJSON+`}]`), handle)
	dispatch([]byte(`not json`), handle)

	assert.Len(t, got, 2)
}

func TestRTDSClientSubscribesAndReceives(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan Command, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		subscribed <- cmd
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"topic":"activity","type":"trades","timestamp":1,"payload":`+tradeJSON+`}`))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewRTDSClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(TradesSubscription()))

	cmd := <-subscribed
	assert.Equal(t, "subscribe", cmd.Action)
	assert.Equal(t, []Subscription{{Topic: "activity", Type: "trades"}}, cmd.Subscriptions)

	received := make(chan TradeMessage, 1)
	runErr := make(chan error, 1)
	go func() {
		runErr <- c.Run(ctx, func(m TradeMessage) { received <- m })
	}()

	select {
	case m := <-received:
		assert.Equal(t, "0xmarket", m.ConditionID)
	case <-ctx.Done():
		t.Fatal("no trade received")
	}

	require.NoError(t, c.Close())
	assert.NoError(t, <-runErr)
}

func TestRTDSClientReportsDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewRTDSClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	err := c.Run(ctx, func(TradeMessage) {})
	assert.True(t, errors.Is(err, domain.ErrWSDisconnect), "got %v", err)
}

func TestRecentTradesBatchesMarkets(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		queries = append(queries, r.URL.Query().Get("market"))
		_, _ = w.Write([]byte(`[` + tradeJSON + `]`))
	}))
	defer srv.Close()

	markets := make([]string, 30)
	for i := range markets {
		markets[i] = "m"
	}
	got, err := NewDataAPIClient(srv.URL).RecentTrades(context.Background(), markets, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, queries, 2)
	assert.Equal(t, 25, strings.Count(queries[0], "m"))
	assert.Equal(t, 5, strings.Count(queries[1], "m"))
}

func TestRecentTradesMapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewDataAPIClient(srv.URL).RecentTrades(context.Background(), nil, 10)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
