package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pocketlist/pocketlist/pkg/idx"
	"github.com/pocketlist/pocketlist/pkg/slogx"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; clients only ever send pongs
	maxMessageSize = 1024
)

// Client is one WebSocket connection bound to an authenticated user.
type Client struct {
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	hub *Hub

	userID idx.ID

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID idx.ID) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 16),
		hub:    hub,
		userID: userID,
		ctx:    clientCtx,
		cancel: cancel,
	}
}

// ReadPump drains the connection to keep pong handling alive. The protocol
// is push only, so inbound frames other than control messages are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					slogx.FromContext(c.ctx).Warn("websocket read failed", "user_id", c.userID, "err", err)
				}
				return
			}
		}
	}
}

// WritePump pumps events from the hub to the connection and keeps the peer
// alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close tears the client down.
func (c *Client) Close() {
	c.cancel()
}
