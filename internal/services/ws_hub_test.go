package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/state"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialHub registers the server side of a fresh connection under sessionID
func dialHub(t *testing.T, hub *WSHub, sessionID string) *websocket.Conn {
	t.Helper()
	registered := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(sessionID, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("connection was not registered")
	}
	return client
}

func TestPublishState(t *testing.T) {
	hub := NewWSHub()
	client := dialHub(t, hub, "session-1")
	require.True(t, hub.IsOnline("session-1"))

	hub.PublishState(state.Snapshot{SessionID: "session-1", Screen: models.ScreenLobby})
	// not connected, dropped silently
	hub.PublishState(state.Snapshot{SessionID: "session-2"})

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string         `json:"type"`
		Data state.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, models.ScreenLobby, msg.Data.Screen)
}

func TestSendToOfflineSession(t *testing.T) {
	hub := NewWSHub()
	assert.Error(t, hub.SendToSession("nobody", WSMessage{Type: "pong"}))
}

func TestCloseDropsConnections(t *testing.T) {
	hub := NewWSHub()
	dialHub(t, hub, "session-1")
	dialHub(t, hub, "session-2")

	hub.Close()
	assert.False(t, hub.IsOnline("session-1"))
	assert.False(t, hub.IsOnline("session-2"))
}
