// Package hub fans game session events out to WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Connection represents a single WebSocket subscriber of one game session.
type Connection struct {
	ID        string
	SessionID string
	UserID    int64
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

// Hub manages all feed subscribers.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Sessions maps game session id to set of connection IDs
	sessions map[string]map[string]bool

	broadcast chan *SessionMessage
	log       *zap.Logger

	mu sync.RWMutex
}

// SessionMessage is used to broadcast a message to a session.
type SessionMessage struct {
	SessionID string
	Data      []byte
}

// NewHub creates a new Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		broadcast:   make(chan *SessionMessage, 256),
		log:         log,
	}
}

// Run delivers published messages until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *SessionMessage) {
	var slow []*Connection

	h.mu.RLock()
	for connID := range h.sessions[msg.SessionID] {
		conn, exists := h.connections[connID]
		if !exists {
			continue
		}
		select {
		case conn.Send <- msg.Data:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		h.log.Warn("feed subscriber buffer full, closing", zap.String("conn_id", conn.ID))
		h.Unregister(conn)
	}
}

// NewConnection wraps ws as a subscriber of a game session.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string, userID int64) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		Conn:      ws,
		Send:      make(chan []byte, sendBuffer),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn.ID] = conn
	if h.sessions[conn.SessionID] == nil {
		h.sessions[conn.SessionID] = make(map[string]bool)
	}
	h.sessions[conn.SessionID][conn.ID] = true
	h.log.Debug("feed connection registered", zap.String("conn_id", conn.ID), zap.String("session_id", conn.SessionID))
}

// Unregister removes a connection and closes its send channel. It is safe to call twice.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if h.sessions[conn.SessionID] != nil {
		delete(h.sessions[conn.SessionID], conn.ID)
		if len(h.sessions[conn.SessionID]) == 0 {
			delete(h.sessions, conn.SessionID)
		}
	}
	close(conn.Send)
	h.log.Debug("feed connection unregistered", zap.String("conn_id", conn.ID))
}

// Publish queues v for every subscriber of sessionID. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Publish(sessionID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("feed message marshal failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &SessionMessage{SessionID: sessionID, Data: data}:
	default:
		h.log.Warn("feed queue full, dropping message", zap.String("session_id", sessionID))
	}
}

// Serve pumps messages to conn until either side closes. It blocks.
func (h *Hub) Serve(conn *Connection) {
	h.Register(conn)
	go h.writePump(conn)
	h.readPump(conn)
}

// readPump drains client frames so control messages are processed.
func (h *Hub) readPump(conn *Connection) {
	defer func() {
		h.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	_ = conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Info("feed connection closed", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}
	}
}

// writePump writes messages to the WebSocket connection.
func (h *Hub) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasSubscribers reports whether a session has any active connections.
func (h *Hub) HasSubscribers(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
