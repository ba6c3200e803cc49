package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/middleware"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

// AlertEvent is one message pushed to feed clients
type AlertEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type wsClient struct {
	conn     *websocket.Conn
	username string
	role     string
	send     chan []byte
}

// AlertsWSHandler pushes alert events to connected browsers
type AlertsWSHandler struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
}

// NewAlertsWSHandler creates a new alerts WebSocket handler
func NewAlertsWSHandler(checkOrigin func(r *http.Request) bool) *AlertsWSHandler {
	return &AlertsWSHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// SetupRoutes configures WebSocket routes
func (h *AlertsWSHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/alerts", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and streams events until the
// client goes away
func (h *AlertsWSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade alerts websocket", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, username: user.Username, role: user.Role, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	logger.Debug("alerts websocket connected",
		zap.String("username", user.Username),
		zap.String("role", user.Role),
		zap.Int("clients", count))

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains client frames so pongs and close frames are processed
func (h *AlertsWSHandler) readLoop(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("alerts websocket read error", zap.String("username", c.username), zap.Error(err))
			}
			return
		}
	}
}

func (h *AlertsWSHandler) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove unregisters c and ends its write loop
func (h *AlertsWSHandler) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	logger.Debug("alerts websocket disconnected", zap.String("username", c.username))
}

// audience returns the roles allowed to receive payload. Alert bodies follow
// the feed's visibility rule and trigger configuration is for admins only.
func audience(payload interface{}) func(role string) bool {
	switch p := payload.(type) {
	case alerts.PersistentAlert:
		return func(role string) bool { return alerts.Visible(role, p.TargetRoles) }
	case *alerts.PersistentAlert:
		return func(role string) bool { return alerts.Visible(role, p.TargetRoles) }
	case database.AlertTrigger, *database.AlertTrigger:
		return func(role string) bool { return role == alerts.RoleAdmin }
	default:
		return func(string) bool { return true }
	}
}

// Publish sends an event to every connected client allowed to see it.
// Clients whose buffer is full miss the event; they reload the feed on the
// next one.
func (h *AlertsWSHandler) Publish(eventType string, payload interface{}) {
	allowed := audience(payload)

	data, err := json.Marshal(AlertEvent{Type: eventType, Data: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		logger.Warn("failed to encode alert event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !allowed(c.role) {
			continue
		}
		select {
		case c.send <- data:
		default:
			logger.Debug("dropping alert event for slow client", zap.String("username", c.username), zap.String("type", eventType))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *AlertsWSHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *AlertsWSHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
