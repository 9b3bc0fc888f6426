package handlers

import (
	"net/http"

	"tnepic-backend/internal/middleware"
	"tnepic-backend/internal/services"
	"tnepic-backend/internal/state"

	"github.com/rs/zerolog/log"
)

// SessionHandler opens client sessions and serves their state
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// LaunchRequest optionally carries the token of the client's previous session
type LaunchRequest struct {
	PreviousToken string `json:"previous_token"`
}

// LaunchResponse represents the response of a session launch
type LaunchResponse struct {
	SessionToken string         `json:"session_token"`
	State        state.Snapshot `json:"state"`
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req LaunchRequest
	if r.ContentLength > 0 {
		if !decode(w, r, &req) {
			return
		}
	}
	if req.PreviousToken == "" {
		req.PreviousToken, _ = middleware.BearerToken(r)
	}

	store, token, err := h.sessions.Launch(r.Context(), req.PreviousToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to launch session")
		respondError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	respondJSON(w, LaunchResponse{SessionToken: token, State: store.Snapshot()}, http.StatusCreated)
}

// GetState handles GET /api/v1/state
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondState(w, middleware.GetStore(r.Context()))
}
