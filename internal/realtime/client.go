package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	userID string
	hub    *Hub
}

func NewClient(conn *websocket.Conn, hub *Hub, userID string) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		hub:    hub,
		userID: userID,
	}
}

type SubscribeMessage struct {
	Action    string   `json:"action"`
	DeviceIDs []string `json:"device_ids"`
}

// ReadPump consumes control frames from the viewer. The send channel is
// never closed: a broadcast may still hold a reference to this client after
// teardown, so WritePump exits via the done channel instead.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.conn.Close()
		close(c.done)
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.hub.logger.Debugw("ReadMessage error", "error", err, "user", c.userID)
			break
		}

		var req SubscribeMessage
		if err := json.Unmarshal(msg, &req); err != nil {
			c.hub.logger.Warnw("JSON unmarshal error", "error", err)
			continue
		}

		if req.Action == "subscribe" {
			for _, deviceID := range req.DeviceIDs {
				// device ids are uuids; drop garbage before it becomes a room key
				if _, err := uuid.Parse(deviceID); err != nil {
					c.hub.logger.Warnw("ignoring invalid device id", "deviceID", deviceID, "user", c.userID)
					continue
				}
				c.hub.Subscribe(deviceID, c)
			}
		} else {
			c.hub.logger.Warnw("unknown action", "action", req.Action)
		}
	}
}

func (c *Client) WritePump() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debugw("WriteMessage error", "error", err, "user", c.userID)
				return
			}
		case <-c.done:
			return
		}
	}
}
