// Package monitor streams the live audit feed to websocket subscribers. The
// hub is registered as a sink on the audit recorder; a slow or dead
// subscriber is dropped rather than allowed to stall the feed.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens before the upgrade; origin is not the control here.
		return true
	},
}

// frame is one encoded record plus the table it belongs to, kept so
// per-subscriber filtering avoids re-decoding the payload.
type frame struct {
	table string
	data  []byte
}

// Hub fans audit records out to connected subscribers.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan frame
	register   chan *client
	unregister chan *client

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan frame, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run owns the client set. Start it once, before wiring the sink.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logger.Debug("monitor subscriber connected", "id", c.id, "table", c.table)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case f := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if c.table != "" && c.table != f.table {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					// Subscriber can't keep up; cut it loose.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// Publish is the audit recorder sink. It never blocks the recorder: with the
// broadcast buffer full the record is simply not streamed.
func (h *Hub) Publish(rec *model.AuditRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- frame{table: rec.Table, data: data}:
	default:
		logger.Warn("monitor broadcast buffer full, dropping record", "id", rec.ID)
	}
}

// add hands a subscriber to the run loop; a stopped hub refuses it rather
// than leaving the caller blocked on the register channel.
func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stream handles GET /v1/monitor/stream. An optional ?table= narrows the
// feed to one table.
func (h *Hub) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("monitor upgrade failed", "error", err.Error())
		return
	}

	cl := newClient(h.ctx, h, conn, uuid.New().String(), c.Query("table"))
	if !h.add(cl) {
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}
