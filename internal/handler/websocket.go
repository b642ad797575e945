package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// ErrNoSubscribers is returned by Publish when no client is connected.
var ErrNoSubscribers = errors.New("no websocket subscribers")

var (
	wsClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roster_ws_clients",
			Help: "Number of connected websocket clients",
		},
	)

	wsDroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_ws_dropped_events_total",
			Help: "Board events dropped because a client was too slow",
		},
	)
)

// client is one websocket subscriber.
type client struct {
	conn   *websocket.Conn
	send   chan model.BoardEvent
	cancel context.CancelFunc
}

// Hub fans board events out to websocket subscribers. Notify never blocks,
// so it is safe to call while the board holds its lock.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*client
}

// NewHub creates a new Hub instance.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]*client),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *Hub) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify queues ev for every subscriber. Subscribers whose buffer is full
// miss the event.
func (h *Hub) Notify(ev model.BoardEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default:
			wsDroppedEvents.Inc()
			h.logger.Debug("dropping event for slow client",
				zap.String("type", ev.Type),
				zap.String("remote_addr", c.conn.RemoteAddr().String()),
			)
		}
	}
}

// Publish pushes a share link to subscribers as a clipboard event.
func (h *Hub) Publish(_ context.Context, link string) error {
	if h.Clients() == 0 {
		return ErrNoSubscribers
	}

	ev := model.NewBoardEvent(model.EventClipboard)
	ev.Title = "Link Copied!"
	ev.Link = link
	h.Notify(ev)
	return nil
}

// HandleWebSocket handles WebSocket connection requests.
//
//nolint:contextcheck // intentional: WebSocket connections outlive the HTTP request context
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		send:   make(chan model.BoardEvent, sendBuffer),
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	wsClients.Inc()

	h.logger.Info("websocket client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go h.writePump(ctx, c)
	go h.readPump(ctx, c)
}

// readPump answers ping messages and tracks connection liveness.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		c.cancel()
		h.removeClient(c.conn)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			h.handleMessage(c, message)
		}
	}
}

func (h *Hub) handleMessage(c *client, message []byte) {
	var in model.BoardEvent
	if err := json.Unmarshal(message, &in); err != nil {
		h.logger.Debug("ignoring malformed message", zap.ByteString("message", message))
		return
	}
	if in.Type != model.EventPing {
		return
	}

	select {
	case c.send <- model.NewBoardEvent(model.EventPong):
	default:
		wsDroppedEvents.Inc()
	}
}

// writePump drains the client's queue and keeps the connection alive.
func (h *Hub) writePump(ctx context.Context, c *client) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(c.conn)
			return
		case ev := <-c.send:
			if err := h.sendEvent(c.conn, ev); err != nil {
				h.logger.Debug("failed to send event", zap.Error(err))
				h.removeClient(c.conn)
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(c.conn); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				h.removeClient(c.conn)
				return
			}
		}
	}
}

func (h *Hub) sendEvent(conn *websocket.Conn, ev model.BoardEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

// sendPing sends a ping message to the connection.
func (h *Hub) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// sendCloseMessage sends a close message to the connection.
func (h *Hub) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient unregisters and closes a connection.
func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	c, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	if !exists {
		return
	}

	c.cancel()
	wsClients.Dec()
	if err := conn.Close(); err != nil {
		h.logger.Debug("error closing connection", zap.Error(err))
	}
	h.logger.Info("websocket client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
}

// CloseAllConnections closes all active WebSocket connections.
func (h *Hub) CloseAllConnections() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	// Cancelling lets each writePump send its close frame.
	for _, c := range clients {
		c.cancel()
	}

	time.Sleep(100 * time.Millisecond)

	for _, c := range clients {
		h.removeClient(c.conn)
	}

	h.logger.Info("all websocket connections closed")
}
