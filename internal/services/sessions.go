package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/remote"
	"tnepic-backend/internal/state"
	"tnepic-backend/internal/syncq"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionTokenTTL = 30 * 24 * time.Hour

// SessionOptions configures the session service
type SessionOptions struct {
	JWTSecret   string
	ForceLogout bool
	IdleTimeout time.Duration
	// OnChange receives every snapshot of every session.
	OnChange func(state.Snapshot)
	// OnTripCompleted runs after any session completes a trip.
	OnTripCompleted func(profile *models.Profile, trip *models.Trip)
}

type sessionEntry struct {
	store    *state.Store
	lastSeen time.Time
}

// SessionService owns the per-client state stores and the tokens that address them
type SessionService struct {
	backend remote.Backend
	outbox  *syncq.Outbox
	opts    SessionOptions
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionService creates a new session service
func NewSessionService(backend remote.Backend, outbox *syncq.Outbox, opts SessionOptions) *SessionService {
	s := &SessionService{
		backend:  backend,
		outbox:   outbox,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
	if outbox != nil {
		outbox.OnChange(func(owner string) {
			if store, err := s.lookup(owner, false); err == nil {
				store.Notify()
			}
		})
	}
	return s
}

// Start forwards backend session-change events to the stores until ctx ends
func (s *SessionService) Start(ctx context.Context) error {
	return s.backend.Subscribe(ctx, func(evt remote.AuthEvent) {
		s.HandleAuthEvent(ctx, evt)
	})
}

// Launch opens a fresh session for a client. When the client presents the
// token of a previous session, that session is signed out first unless
// forced logout is disabled, in which case it is resumed.
func (s *SessionService) Launch(ctx context.Context, previousToken string) (*state.Store, string, error) {
	if previousToken != "" {
		if prevID, err := s.ValidateJWT(previousToken); err == nil {
			if prev, err := s.lookup(prevID, true); err == nil {
				if !s.opts.ForceLogout {
					log.Info().Str("session_id", prevID).Msg("Session resumed")
					return prev, previousToken, nil
				}
				if err := prev.SignOut(ctx); err != nil {
					log.Error().Err(err).Str("session_id", prevID).Msg("Failed to sign out previous session")
				}
				s.remove(prevID)
				log.Info().Str("session_id", prevID).Msg("Previous session signed out on launch")
			}
		}
	}

	id := uuid.New().String()
	store := state.NewStore(id, state.Options{
		Backend:         s.backend,
		Replicator:      s.replicator(),
		OnTripCompleted: s.opts.OnTripCompleted,
	})
	if s.opts.OnChange != nil {
		store.OnChange(s.opts.OnChange)
	}

	token, err := s.GenerateJWT(id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = &sessionEntry{store: store, lastSeen: s.now()}
	s.mu.Unlock()
	sessionsActive.Inc()

	log.Info().Str("session_id", id).Msg("Session launched")
	return store, token, nil
}

// replicator avoids handing a typed nil outbox to the store
func (s *SessionService) replicator() state.Replicator {
	if s.outbox == nil {
		return nil
	}
	return s.outbox
}

// Get returns the store of a session and marks it as used
func (s *SessionService) Get(sessionID string) (*state.Store, error) {
	return s.lookup(sessionID, true)
}

func (s *SessionService) lookup(sessionID string, touch bool) (*state.Store, error) {
	if touch {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if touch {
		entry.lastSeen = s.now()
	}
	return entry.store, nil
}

func (s *SessionService) remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		sessionsActive.Dec()
	}
}

// Count returns the number of live sessions
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// HandleAuthEvent hands a backend session change to every store
func (s *SessionService) HandleAuthEvent(ctx context.Context, evt remote.AuthEvent) {
	s.mu.RLock()
	stores := make([]*state.Store, 0, len(s.sessions))
	for _, entry := range s.sessions {
		stores = append(stores, entry.store)
	}
	s.mu.RUnlock()

	authEvents.WithLabelValues(string(evt.Type)).Inc()
	for _, store := range stores {
		store.HandleAuthEvent(ctx, evt)
	}
}

// ExpireIdle drops sessions unused for longer than the idle timeout.
// Queued writes of expired sessions are left to finish.
func (s *SessionService) ExpireIdle() int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.opts.IdleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			sessionsActive.Dec()
			expired++
		}
	}
	if expired > 0 {
		log.Info().Int("expired", expired).Msg("Expired idle sessions")
	}
	return expired
}

// RunJanitor expires idle sessions periodically until ctx is cancelled
func (s *SessionService) RunJanitor(ctx context.Context) {
	interval := s.opts.IdleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireIdle()
		}
	}
}

// GenerateJWT generates a session token
func (s *SessionService) GenerateJWT(sessionID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        now.Add(sessionTokenTTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a session token and returns the session ID
func (s *SessionService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session_id not found in token")
	}

	return sessionID, nil
}

// Resolve validates a session token and returns its store
func (s *SessionService) Resolve(tokenString string) (*state.Store, error) {
	sessionID, err := s.ValidateJWT(tokenString)
	if err != nil {
		return nil, err
	}
	return s.Get(sessionID)
}
