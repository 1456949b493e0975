// Package ws delivers real-time escalation alerts to connected dashboard
// clients. Unlike a topic-based hub, there is a single alert stream: every
// connected observer receives every alert.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Alert is one real-time notification frame.
type Alert struct {
	Type      string          `json:"type"`
	PatientID string          `json:"patient_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single connected observer.
type Client struct {
	ID   string
	Send chan []byte
	conn Conn
}

// AlertHub tracks live observers. A subscriber that cannot keep up (full send
// buffer) is removed so one slow consumer never blocks delivery to the rest.
type AlertHub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  zerolog.Logger
}

func NewAlertHub(logger zerolog.Logger) *AlertHub {
	return &AlertHub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds an observer to the hub.
func (h *AlertHub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes an observer and closes its send channel.
func (h *AlertHub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// Broadcast sends an alert to every connected observer. Observers whose
// buffers are full are evicted rather than blocking the broadcast.
func (h *AlertHub) Broadcast(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(alert)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal alert")
		return
	}

	var stale []*Client
	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn().Str("client_id", client.ID).Msg("evicting slow alert subscriber")
		h.Unregister(client)
	}
}

// ClientCount returns the number of connected observers.
func (h *AlertHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections into hub observers.
type Handler struct {
	hub *AlertHub
}

func NewHandler(hub *AlertHub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/alerts", wh.HandleConnect)
}

// HandleConnect upgrades the connection, registers the observer, and starts
// read/write pumps.
func (wh *Handler) HandleConnect(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, 256),
		conn: &gorillaConnAdapter{conn},
	}

	wh.hub.Register(client)

	go wh.writePump(client, conn)
	go wh.readPump(client, conn)

	return nil
}

// readPump discards inbound frames; the alert stream is one-way. Its job is
// to detect disconnects and unregister the observer.
func (wh *Handler) readPump(client *Client, conn *gorillawebsocket.Conn) {
	defer func() {
		wh.hub.Unregister(client)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (wh *Handler) writePump(client *Client, conn *gorillawebsocket.Conn) {
	defer conn.Close()

	for message := range client.Send {
		if err := conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
