// Package remote is the boundary to the hosted backend: password and anonymous
// auth, session-change events, and owner-scoped profile/trip/memory rows.
package remote

import (
	"context"
	"errors"
	"time"

	"tnepic-backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAnonymousDisabled  = errors.New("anonymous sign-ins are disabled")
	ErrUnauthorized       = errors.New("invalid or expired session")
	ErrForbidden          = errors.New("row not owned by session")
	ErrNotFound           = errors.New("row not found")
)

// Session is an authenticated backend session
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	Anonymous   bool
	ExpiresAt   time.Time
}

// EventType names a session change
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventProfileUpdated EventType = "profile_updated"
)

// AuthEvent is fired on every session change for a user
type AuthEvent struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Backend is the remote service the session containers talk to.
// Every row operation is scoped to the user behind accessToken.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignInAnonymously(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Subscribe(ctx context.Context, handler func(AuthEvent)) error

	GetProfile(ctx context.Context, accessToken, userID string) (*models.Profile, error)
	InsertProfile(ctx context.Context, accessToken string, profile *models.Profile) error
	UpdateProfile(ctx context.Context, accessToken string, profile *models.Profile) error

	ListTrips(ctx context.Context, accessToken, userID string) ([]*models.Trip, error)
	InsertTrip(ctx context.Context, accessToken string, trip *models.Trip) error
	UpdateTrip(ctx context.Context, accessToken string, trip *models.Trip) error
	InsertMemory(ctx context.Context, accessToken string, memory *models.Memory) error
}
