package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tnepic-backend/internal/services"
	"tnepic-backend/internal/state"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StateResponse wraps the snapshot returned by every state-changing call
type StateResponse struct {
	State state.Snapshot `json:"state"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, body interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// respondState sends the current snapshot of store
func respondState(w http.ResponseWriter, store *state.Store) {
	respondJSON(w, StateResponse{State: store.Snapshot()}, http.StatusOK)
}

// respondStateError maps a store error to its status and user-facing message
func respondStateError(w http.ResponseWriter, sessionID string, err error) {
	statusCode := statusFor(err)
	if statusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Request failed")
	}
	respondError(w, state.UserMessage(err), statusCode)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrInvalidRegistration),
		errors.Is(err, state.ErrInvalidTrip),
		errors.Is(err, state.ErrInvalidScreen),
		errors.Is(err, state.ErrInvalidLanguage):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrNotSignedIn),
		errors.Is(err, services.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, state.ErrNoActiveTrip):
		return http.StatusNotFound
	case errors.Is(err, state.ErrTripAlreadyActive),
		errors.Is(err, state.ErrEmailTaken),
		errors.Is(err, state.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, state.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v, answering 400 on failure
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
