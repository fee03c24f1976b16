package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/kestrel/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inbound traffic is control messages only.
	maxMessageSize = 4 * 1024

	// sendBuffer is how far a subscriber may fall behind before the hub
	// evicts it.
	sendBuffer = 256
)

// clientIDCounter hands out connection-ordered client ids.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	logger logger.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		logger: hub.logger,
	}
}

// start begins the read and write pumps for the connection.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

// readPump drains inbound messages until the connection dies. The only
// client-initiated message it honors is an application-level ping.
func (c *Client) readPump() {
	ctx := context.Background()
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error(ctx, "failed to set read deadline", logger.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(ctx, "unexpected websocket close", logger.Error(err))
			}
			break
		}

		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump forwards hub messages to the connection and keeps it alive
// with protocol pings.
func (c *Client) writePump() {
	ctx := context.Background()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error(ctx, "failed to set write deadline", logger.Error(err))
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
