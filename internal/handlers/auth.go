package handlers

import (
	"net/http"

	"tnepic-backend/internal/middleware"
	"tnepic-backend/internal/models"
	"tnepic-backend/internal/state"
)

// AuthHandler drives sign-in, registration and session settings of a store
type AuthHandler struct{}

// NewAuthHandler creates a new auth handler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// EmailSignInRequest represents the sign-in form
type EmailSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailSignInResponse tells the client whether to show the register screen
type EmailSignInResponse struct {
	NeedsRegistration bool           `json:"needs_registration"`
	State             state.Snapshot `json:"state"`
}

// SignInWithEmail handles POST /api/v1/auth/email
func (h *AuthHandler) SignInWithEmail(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req EmailSignInRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := store.SignInWithEmail(r.Context(), req.Email, req.Password)
	if err != nil {
		respondStateError(w, store.ID(), err)
		return
	}

	respondJSON(w, EmailSignInResponse{
		NeedsRegistration: res.NeedsRegistration,
		State:             store.Snapshot(),
	}, http.StatusOK)
}

// SignInWithGoogle handles POST /api/v1/auth/google
func (h *AuthHandler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())
	if err := store.SignInWithGoogle(r.Context()); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// SignInAsGuest handles POST /api/v1/auth/guest
func (h *AuthHandler) SignInAsGuest(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())
	if err := store.SignInAsGuest(r.Context()); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req state.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	if err := store.RegisterUser(r.Context(), req); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())
	if err := store.SignOut(r.Context()); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// SetScreen handles PUT /api/v1/screen
func (h *AuthHandler) SetScreen(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req struct {
		Screen string `json:"screen"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := store.SetScreen(req.Screen); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// SetLanguage handles PUT /api/v1/language
func (h *AuthHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req struct {
		Language models.Language `json:"language"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := store.SetLanguage(r.Context(), req.Language); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	respondState(w, store)
}

// SetPushToken handles PUT /api/v1/push-token
func (h *AuthHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	store := middleware.GetStore(r.Context())

	var req struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := store.SetPushToken(r.Context(), req.Token); err != nil {
		respondStateError(w, store.ID(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
