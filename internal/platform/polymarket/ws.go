package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the longest silence tolerated before the connection is
	// considered dead. Heartbeat replies reset it.
	readWait = 60 * time.Second

	// pingPeriod is the RTDS heartbeat interval.
	pingPeriod = 5 * time.Second
)

var (
	pingMessage = []byte("PING")
	pongMessage = []byte("PONG")
)

// TradeHandler is called for every trade received.
type TradeHandler func(TradeMessage)

// RTDSClient is a WebSocket client for the Polymarket real-time data service.
// Connect, Subscribe and Run are called in that order by one goroutine;
// Close may be called from any goroutine.
type RTDSClient struct {
	wsURL  string
	dialer websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// NewRTDSClient creates a client for wsURL, e.g.
// "wss://ws-live-data.polymarket.com".
func NewRTDSClient(wsURL string) *RTDSClient {
	return &RTDSClient{
		wsURL:  wsURL,
		dialer: websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		done:   make(chan struct{}),
	}
}

// Connect dials the service.
func (c *RTDSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	c.conn = conn
	return nil
}

// Subscribe sends a subscribe command for subs.
func (c *RTDSClient) Subscribe(subs ...Subscription) error {
	return c.write(Command{Action: "subscribe", Subscriptions: subs})
}

func (c *RTDSClient) write(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal command: %w", err)
	}
	return c.send(websocket.TextMessage, data)
}

func (c *RTDSClient) send(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("polymarket/ws: write: %w", err)
	}
	return nil
}

// Run reads messages and passes every trade to handle until ctx is done, the
// client is closed or the connection fails. A connection failure returns an
// error wrapping domain.ErrWSDisconnect.
func (c *RTDSClient) Run(ctx context.Context, handle TradeHandler) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	stop := make(chan struct{})
	defer close(stop)
	go c.heartbeat(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			return fmt.Errorf("polymarket/ws: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		dispatch(message, handle)
	}
}

// heartbeat sends the RTDS text ping until stop or close.
func (c *RTDSClient) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(websocket.TextMessage, pingMessage); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one frame. Heartbeat replies, empty frames and other
// topics are ignored. Some frames carry a batch of envelopes.
func dispatch(raw []byte, handle TradeHandler) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, pongMessage) {
		return
	}
	if raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return
		}
		for _, item := range batch {
			dispatch(item, handle)
		}
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	if env.Topic != "activity" || len(env.Payload) == 0 {
		return
	}
	if env.Type != "trades" && env.Type != "orders_matched" {
		return
	}
	var msg TradeMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return
	}
	handle(msg)
}

// Close shuts down the connection. It is safe to call more than once.
func (c *RTDSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return c.conn.Close()
}
