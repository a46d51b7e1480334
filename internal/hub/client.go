package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. Doubles
	// as the idle timeout: a peer that stops answering pings is closed.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 4096

	// Per-connection outbound buffer.
	sendBufferSize = 64
)

// Client is one live WebSocket connection. The read pump is the only
// reader of the socket and the write pump the only writer.
type Client struct {
	ID     string
	UserID string // empty for anonymous connections

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	logger zerolog.Logger
}

// NewClient wraps an upgraded connection. The caller must Register it
// with the hub and start both pumps.
func NewClient(id, userID string, h *Hub, conn *websocket.Conn, logger zerolog.Logger) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// Deliver queues an already-marshalled frame for this client. It reports
// false when the buffer is full.
func (c *Client) Deliver(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump reads inbound frames and hands them to handler. It owns
// connection cleanup: whatever ends the loop, the client is unregistered
// and the socket closed exactly once.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Str("conn_id", c.ID).Msg("websocket read failed")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the send buffer to the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
