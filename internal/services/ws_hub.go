package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tnepic-backend/internal/state"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per session
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a session
func (h *WSHub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[sessionID]; exists {
		existing.conn.Close()
	} else {
		wsConnections.Inc()
	}

	h.connections[sessionID] = &wsClient{conn: conn}
	log.Info().Str("session_id", sessionID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the session's connection
func (h *WSHub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.connections[sessionID]; exists && client.conn == conn {
		client.conn.Close()
		delete(h.connections, sessionID)
		wsConnections.Dec()
		log.Info().Str("session_id", sessionID).Msg("WebSocket connection unregistered")
	}
}

// SendToSession sends a message to a specific session
func (h *WSHub) SendToSession(sessionID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[sessionID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session %s is not connected", sessionID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(sessionID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a session has a live connection
func (h *WSHub) IsOnline(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[sessionID]
	return exists
}

// PublishState pushes a snapshot to its session if it is connected
func (h *WSHub) PublishState(snap state.Snapshot) {
	if !h.IsOnline(snap.SessionID) {
		return
	}
	if err := h.SendToSession(snap.SessionID, WSMessage{Type: "state", Data: snap}); err != nil {
		log.Warn().Err(err).Str("session_id", snap.SessionID).Msg("Failed to push state")
	}
}

// Close closes every connection
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.connections {
		client.conn.Close()
		delete(h.connections, id)
		wsConnections.Dec()
	}
}
