package handlers

import (
	"encoding/json"
	"net/http"

	"tnepic-backend/internal/services"
	"tnepic-backend/internal/state"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams state snapshots to connected clients
type WebSocketHandler struct {
	hub      *services.WSHub
	sessions *services.SessionService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, sessions *services.SessionService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		sessions: sessions,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	store, err := h.sessions.Resolve(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}
	sessionID := store.ID()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(sessionID, conn)
	defer h.hub.Unregister(sessionID, conn)

	h.sendState(store)
	log.Info().Str("session_id", sessionID).Msg("WebSocket connection established")

	// Handle messages
	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", sessionID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to parse WebSocket message")
			h.sendError(sessionID, "Invalid message format")
			continue
		}

		h.handleMessage(store, msg)
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(store *state.Store, msg services.WSMessage) {
	switch msg.Type {
	case "ping":
		if err := h.hub.SendToSession(store.ID(), services.WSMessage{Type: "pong"}); err != nil {
			log.Warn().Err(err).Str("session_id", store.ID()).Msg("Failed to send pong")
		}
	case "get_state":
		h.sendState(store)
	default:
		h.sendError(store.ID(), "Unknown message type")
	}
}

func (h *WebSocketHandler) sendState(store *state.Store) {
	h.hub.PublishState(store.Snapshot())
}

// sendError sends an error message to a session
func (h *WebSocketHandler) sendError(sessionID, message string) {
	msg := services.WSMessage{
		Type:    "error",
		Message: message,
	}
	if err := h.hub.SendToSession(sessionID, msg); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to send error message")
	}
}
