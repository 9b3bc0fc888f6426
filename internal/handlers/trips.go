package handlers

import (
	"context"
	"net/http"

	"tnepic-backend/internal/middleware"
	"tnepic-backend/internal/models"
)

// TripHandler handles trip lifecycle requests
type TripHandler struct{}

// NewTripHandler creates a new trip handler
func NewTripHandler() *TripHandler {
	return &TripHandler{}
}

// StartTripRequest represents the trip planning form
type StartTripRequest struct {
	Duration     int      `json:"duration"`
	Destinations []string `json:"destinations"`
}

// LevelRequest carries the earnings of a finished AR level
type LevelRequest struct {
	Tokens int `json:"tokens"`
	Dharma int `json:"dharma"`
}

// StartTrip handles POST /api/v1/trips
func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req StartTripRequest
	if !decode(w, r, &req) {
		return
	}

	if err := store.StartNewTrip(r.Context(), req.Duration, req.Destinations); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondJSON(w, StateResponse{State: store.Snapshot()}, http.StatusCreated)
}

// CancelTrip handles POST /api/v1/trips/active/cancel
func (h *TripHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context) error {
		return middleware.GetStore(ctx).CancelTrip(ctx)
	})
}

// CompleteTrip handles POST /api/v1/trips/active/complete
func (h *TripHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context) error {
		return middleware.GetStore(ctx).CompleteTrip(ctx)
	})
}

// ResumeTrip handles POST /api/v1/trips/active/resume
func (h *TripHandler) ResumeTrip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context) error {
		return middleware.GetStore(ctx).ResumeTrip(ctx)
	})
}

// CompleteLevel handles POST /api/v1/trips/active/levels
func (h *TripHandler) CompleteLevel(w http.ResponseWriter, r *http.Request) {
	var req LevelRequest
	if !decode(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context) error {
		return middleware.GetStore(ctx).AdvanceLevel(ctx, req.Tokens, req.Dharma)
	})
}

func (h *TripHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) {
	store := middleware.GetStore(r.Context())
	if err := fn(r.Context()); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// activeTripOf returns the ids an upload for the active trip is keyed on
func activeTripOf(ctx context.Context) (userID string, trip *models.Trip) {
	snap := middleware.GetStore(ctx).Snapshot()
	return snap.Identity.UserID, snap.ActiveTrip
}
