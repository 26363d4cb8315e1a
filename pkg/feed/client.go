// Package feed is a Go consumer client for the gridwatch realtime
// subscription endpoint. It dials /ws, subscribes by device id and delivers
// seed/reading/alert events on a channel, reconnecting with backoff when the
// connection drops. Missed events across a reconnect are not replayed;
// consumers needing guaranteed history query the durable store.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// connectionState represents the WebSocket connection status
type connectionState int

const (
	stateDisconnected connectionState = iota
	stateConnecting
	stateConnected
	stateReconnecting
)

// Event is one frame from the feed. Reading/Alert/Readings stay raw so the
// package has no dependency on the server's row types.
type Event struct {
	Event    string          `json:"event"` // "seed", "reading", "alert"
	DeviceID string          `json:"device_id"`
	Reading  json.RawMessage `json:"reading,omitempty"`
	Alert    json.RawMessage `json:"alert,omitempty"`
	Readings json.RawMessage `json:"readings,omitempty"` // seed only
}

type subscribeMessage struct {
	Action    string   `json:"action"`
	DeviceIDs []string `json:"device_ids"`
}

// Client is a realtime feed subscriber.
type Client struct {
	url   string
	token string

	mu       sync.Mutex
	conn     *websocket.Conn
	state    connectionState
	shutdown bool
	devices  map[string]bool // subscriptions to restore after reconnect

	events chan Event
	done   chan struct{}
	logger *zap.Logger

	dialTimeout       time.Duration
	reconnectInterval time.Duration
}

// NewClient initializes a feed client for the given ws:// or wss:// URL.
// token may be empty when the server runs without viewer tokens.
func NewClient(url, token string, logger *zap.Logger) *Client {
	return &Client{
		url:               url,
		token:             token,
		logger:            logger,
		dialTimeout:       10 * time.Second,
		reconnectInterval: 500 * time.Millisecond,
		state:             stateDisconnected,
		devices:           make(map[string]bool),
		events:            make(chan Event, 64),
		done:              make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the listen loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateConnected && c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.mu.Unlock()

	if err := c.dialServer(ctx); err != nil {
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("connect failed: %w", err)
	}

	c.mu.Lock()
	c.state = stateConnected
	c.mu.Unlock()

	go c.listen(ctx)
	return nil
}

// Subscribe asks for the window seed plus live events of the given devices.
// Subscriptions persist across reconnects.
func (c *Client) Subscribe(ctx context.Context, deviceIDs ...string) error {
	c.mu.Lock()
	for _, id := range deviceIDs {
		c.devices[id] = true
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("client not connected")
	}

	return wsjson.Write(ctx, conn, subscribeMessage{
		Action:    "subscribe",
		DeviceIDs: deviceIDs,
	})
}

// Events returns the delivery channel. The channel stays open across
// reconnects; Done signals when the client has shut down for good.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// IsConnected checks if the client is connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected && c.conn != nil
}

// Close gracefully shuts the client down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return nil
	}
	c.shutdown = true

	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
		c.conn = nil
	}
	c.state = stateDisconnected
	close(c.done)
	return nil
}

func (c *Client) dialServer(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	url := c.url
	if c.token != "" {
		url += "?token=" + c.token
	}

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		c.logger.Error("Dial failed", zap.Error(err))
		return err
	}
	conn.SetReadLimit(1 << 22) // seed frames carry up to a full window

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// listen reads events until the connection dies, then hands off to the
// reconnect loop unless the client is shutting down.
func (c *Client) listen(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		shutdown := c.shutdown
		c.mu.Unlock()

		if shutdown || conn == nil {
			return
		}

		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			c.mu.Lock()
			shutdown = c.shutdown
			c.mu.Unlock()
			if shutdown || ctx.Err() != nil {
				return
			}
			c.logger.Warn("read failed, reconnecting", zap.Error(err))
			c.reconnect(ctx)
			return
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// reconnect redials with a fixed retry interval and restores subscriptions.
func (c *Client) reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.state = stateReconnecting
	c.conn = nil
	c.mu.Unlock()

	retryTicker := time.NewTicker(c.reconnectInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Warn("reconnect context done, giving up")
			return
		case <-retryTicker.C:
			c.mu.Lock()
			if c.shutdown {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

			if err := c.Connect(ctx); err != nil {
				c.logger.Warn("reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("reconnected successfully")
			c.resubscribeAll(ctx)
			return
		}
	}
}

func (c *Client) resubscribeAll(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	if err := c.Subscribe(ctx, ids...); err != nil {
		c.logger.Warn("resubscribe failed", zap.Error(err))
	}
}
