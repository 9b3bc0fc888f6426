package handlers

import (
	"errors"
	"net/http"

	"tnepic-backend/internal/middleware"
	"tnepic-backend/internal/models"
	"tnepic-backend/internal/services"
	"tnepic-backend/internal/state"

	"github.com/rs/zerolog/log"
)

// MemoryHandler handles memory capture requests
type MemoryHandler struct {
	memoryService *services.MemoryService
}

// NewMemoryHandler creates a new memory handler. A nil service disables uploads.
func NewMemoryHandler(memoryService *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// AddMemoryRequest represents a captured image
type AddMemoryRequest struct {
	ImageURL string `json:"image_url"`
	Location string `json:"location"`
}

// AddMemoryResponse represents the stored memory with the new state
type AddMemoryResponse struct {
	Memory *models.Memory `json:"memory"`
	State  state.Snapshot `json:"state"`
}

// UploadMemory handles POST /api/v1/trips/active/memories/upload
func (h *MemoryHandler) UploadMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	if h.memoryService == nil {
		respondError(w, "Uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	var req services.UploadRequest
	if !decode(w, r, &req) {
		return
	}

	userID, trip := activeTripOf(ctx)
	if userID == "" {
		respondStateError(w, sessionID, state.ErrNotSignedIn)
		return
	}
	if trip == nil {
		respondStateError(w, sessionID, state.ErrNoActiveTrip)
		return
	}

	response, err := h.memoryService.PresignUpload(ctx, userID, trip.ID, req.ContentType)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedImage) {
			respondError(w, "Unsupported image type", http.StatusBadRequest)
			return
		}
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("trip_id", trip.ID).
			Msg("Failed to generate upload URL")
		respondError(w, "Failed to generate upload URL", http.StatusInternalServerError)
		return
	}

	respondJSON(w, response, http.StatusOK)
}

// AddMemory handles POST /api/v1/trips/active/memories
func (h *MemoryHandler) AddMemory(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req AddMemoryRequest
	if !decode(w, r, &req) {
		return
	}

	memory, err := store.AddMemory(r.Context(), req.ImageURL, req.Location)
	if err != nil {
		respondStateError(w, store.ID(), err)
		return
	}

	respondJSON(w, AddMemoryResponse{Memory: memory, State: store.Snapshot()}, http.StatusCreated)
}
