package monitor

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tablegate/tablegate/internal/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// client is one subscriber connection. Subscribers only listen; the read
// pump exists to surface disconnects and service pings.
type client struct {
	conn  *websocket.Conn
	send  chan []byte
	hub   *Hub
	id    string
	table string

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(ctx context.Context, hub *Hub, conn *websocket.Conn, id, table string) *client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &client{
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    hub,
		id:     id,
		table:  table,
		ctx:    clientCtx,
		cancel: cancel,
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("monitor subscriber read error", "id", c.id, "error", err.Error())
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.cancel()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
