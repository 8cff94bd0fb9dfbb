package notification

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Topics an operator console can subscribe to
const (
	TopicNotifications = "notifications"
	TopicReports       = "reports"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is the JSON frame pushed to consoles
type Message struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// Hub fans ledger notices out to connected operator consoles over websockets
type Hub struct {
	connections map[*connection]bool
	register    chan *connection
	unregister  chan *connection
	broadcast   chan *Message
	done        chan struct{}

	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

type connection struct {
	ws     *websocket.Conn
	topics []string // empty means every topic
	send   chan *Message
	hub    *Hub
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(logger *zap.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		connections: make(map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		broadcast:   make(chan *Message, 256),
		done:        make(chan struct{}),
		logger:      logger.Named("ws_hub"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// Run owns the connection set until ctx is cancelled, then closes every socket
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			conns := make([]*connection, 0, len(h.connections))
			for c := range h.connections {
				conns = append(conns, c)
			}
			h.mu.RUnlock()
			for _, c := range conns {
				_ = c.ws.Close()
			}
			return

		case c := <-h.register:
			h.mu.Lock()
			h.connections[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.connections[c] {
				delete(h.connections, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.connections {
				if !c.wants(msg.Topic) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					// slow consumer
					delete(h.connections, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues a message without blocking; false means the queue was full
func (h *Hub) Publish(msg *Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.logger.Warn("hub broadcast queue full, dropping message", zap.String("type", msg.Type))
		return false
	}
}

// Count returns the number of connected consoles
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Name implements billing.NotificationChannel
func (h *Hub) Name() string { return "websocket" }

// Deliver implements billing.NotificationChannel. A notice counts as delivered
// once it is queued for at least one connected console.
func (h *Hub) Deliver(_ context.Context, notice billing.Notice) error {
	if h.Count() == 0 {
		return shared.NewExternalAdapterError("no operator console connected", nil)
	}
	if !h.Publish(&Message{Type: string(notice.Event.Kind), Topic: TopicNotifications, Data: notice}) {
		return shared.NewExternalAdapterError("websocket queue full", nil)
	}
	return nil
}

// ReportReady tells consoles an archived report can be downloaded
func (h *Hub) ReportReady(name, url string) {
	h.Publish(&Message{
		Type:  "report_ready",
		Topic: TopicReports,
		Data:  map[string]string{"name": name, "url": url},
	})
}

// ServeHTTP upgrades the request. ?topics=notifications,reports narrows the feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	var topics []string
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}
	c := &connection{ws: ws, topics: topics, send: make(chan *Message, sendBuffer), hub: h}

	select {
	case h.register <- c:
	case <-h.done:
		_ = ws.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *connection) wants(topic string) bool {
	return len(c.topics) == 0 || slices.Contains(c.topics, topic)
}

func (c *connection) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.ws.Close()
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ billing.NotificationChannel = (*Hub)(nil)
