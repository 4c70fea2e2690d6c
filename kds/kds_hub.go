package kds

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

// Event types
const (
	EventOrderUpdate = "order_update"
	EventStaffNotif  = "staff_notification"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 256
	maxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// StaffNotification is the payload of EventStaffNotif.
type StaffNotification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Client struct {
	id   string
	role string
	conn *websocket.Conn
	send chan Message
	hub  *Hub
}

// Hub holds the connected back-office screens and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the register, unregister and broadcast channels until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_id":    client.id,
				"role":         client.role,
				"client_count": count,
			}).Info("Client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_id":    client.id,
				"client_count": count,
			}).Info("Client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) Broadcast(event string, data any) {
	message := Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.WithField("event", event).Warn("Broadcast channel full, dropping message")
	}
}

func (h *Hub) NotifySuccess(message string) { h.notify("success", message) }
func (h *Hub) NotifyError(message string)   { h.notify("error", message) }
func (h *Hub) NotifyInfo(message string)    { h.notify("info", message) }

func (h *Hub) notify(level, message string) {
	h.Broadcast(EventStaffNotif, StaffNotification{Level: level, Message: message})
}

// Relay forwards order change events from transport to every client until ctx ends
// or the feed closes.
func (h *Hub) Relay(ctx context.Context, transport realtime.Transport, collection string) error {
	sub, err := transport.Subscribe(ctx, collection, realtime.Filter{})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.C:
			if !ok {
				h.logger.WithField("collection", collection).Warn("Relay feed closed")
				return nil
			}
			h.Broadcast(EventOrderUpdate, event)
		}
	}
}

// ServeWS upgrades the request and registers the connection under role.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, role string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		role: role,
		conn: conn,
		send: make(chan Message, sendBuffer),
		hub:  h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithField("client_id", c.id).Error("WebSocket error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.hub.logger.WithError(err).Error("Failed to marshal WebSocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
