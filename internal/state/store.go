// Package state holds the per-client application state: identity, profile,
// trips and the current screen. Every mutation goes through a Store method;
// readers get copies via Snapshot or change listeners.
package state

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/remote"
	"tnepic-backend/internal/syncq"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Replicator delivers writes to the backend, retrying the ones that fail
type Replicator interface {
	Submit(ctx context.Context, w syncq.Write) bool
	Pending(owner string) int
	FlushOwner(ctx context.Context, owner string) int
	Drop(owner string) int
}

// Options wires a Store to its collaborators
type Options struct {
	Backend    remote.Backend
	Replicator Replicator
	Now        func() time.Time
	Intn       func(n int) int
	// OnTripCompleted runs after a trip completes, outside the store lock.
	OnTripCompleted func(profile *models.Profile, trip *models.Trip)
}

// Snapshot is a read-only copy of a store
type Snapshot struct {
	SessionID      string          `json:"session_id"`
	Identity       models.Identity `json:"identity"`
	Profile        *models.Profile `json:"profile"`
	DharmaProgress int             `json:"dharma_progress"`
	ActiveTrip     *models.Trip    `json:"active_trip"`
	CompletedTrips []*models.Trip  `json:"completed_trips"`
	PendingEmail   string          `json:"pending_email"`
	Language       models.Language `json:"language"`
	Screen         models.Screen   `json:"screen"`
	IsLoading      bool            `json:"is_loading"`
	SyncPending    int             `json:"sync_pending"`
}

// Store is the state container of one client session
type Store struct {
	id         string
	backend    remote.Backend
	replicator Replicator
	now        func() time.Time
	intn       func(n int) int
	onComplete func(*models.Profile, *models.Trip)

	mu           sync.Mutex
	epoch        uint64
	loading      int
	identity     models.Identity
	profile      *models.Profile
	active       *models.Trip
	completed    []*models.Trip
	pendingEmail string
	language     models.Language
	screen       models.Screen

	lmu       sync.RWMutex
	listeners []func(Snapshot)
}

// NewStore creates a store in the signed-out state on the onboarding screen
func NewStore(id string, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Intn == nil {
		opts.Intn = rand.Intn
	}
	s := &Store{
		id:         id,
		backend:    opts.Backend,
		replicator: opts.Replicator,
		now:        opts.Now,
		intn:       opts.Intn,
		onComplete: opts.OnTripCompleted,
		language:   models.LanguageEnglish,
	}
	s.resetLocked()
	return s
}

// ID returns the session id the store belongs to
func (s *Store) ID() string {
	return s.id
}

// OnChange registers fn to receive a snapshot after every change
func (s *Store) OnChange(fn func(Snapshot)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		SessionID:      s.id,
		Identity:       s.identity,
		Profile:        cloneProfile(s.profile),
		ActiveTrip:     s.active.Clone(),
		CompletedTrips: make([]*models.Trip, 0, len(s.completed)),
		PendingEmail:   s.pendingEmail,
		Language:       s.language,
		Screen:         s.screen,
		IsLoading:      s.loading > 0,
	}
	for _, t := range s.completed {
		snap.CompletedTrips = append(snap.CompletedTrips, t.Clone())
	}
	s.mu.Unlock()

	if snap.Profile != nil {
		snap.DharmaProgress = snap.Profile.DharmaProgress()
	}
	if s.replicator != nil {
		snap.SyncPending = s.replicator.Pending(s.id)
	}
	return snap
}

// Notify pushes a fresh snapshot to the listeners
func (s *Store) Notify() {
	s.lmu.RLock()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.lmu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

// mutate applies fn under the lock and notifies listeners afterwards
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	err := fn()
	s.mu.Unlock()
	if err == nil {
		s.Notify()
	}
	return err
}

// begin marks a remote call as in flight and returns the epoch it started in
func (s *Store) begin() uint64 {
	s.mu.Lock()
	s.loading++
	epoch := s.epoch
	s.mu.Unlock()
	s.Notify()
	return epoch
}

// end finishes a remote call. apply runs only if no sign-out or identity
// change happened since begin; otherwise the result is dropped.
func (s *Store) end(epoch uint64, apply func()) error {
	s.mu.Lock()
	s.loading--
	stale := s.epoch != epoch
	if !stale && apply != nil {
		apply()
	}
	s.mu.Unlock()
	s.Notify()

	if stale {
		log.Debug().Str("session_id", s.id).Msg("Discarding result of superseded request")
		return ErrSuperseded
	}
	return nil
}

// resetLocked restores the signed-out state. The language choice survives.
func (s *Store) resetLocked() {
	s.epoch++
	s.identity = models.Identity{Kind: models.IdentityAnonymous}
	s.profile = nil
	s.active = nil
	s.completed = []*models.Trip{}
	s.pendingEmail = ""
	s.screen = models.ScreenOnboarding
}

// replicate sends a write for the current identity to the backend. Local
// state has already changed; failures are queued, not returned.
func (s *Store) replicate(ctx context.Context, aggregate, name string, run func(ctx context.Context) error) {
	w := syncq.Write{
		Owner:     s.id,
		Aggregate: aggregate,
		Name:      name,
		Run: func(ctx context.Context) error {
			err := run(ctx)
			if errors.Is(err, remote.ErrUnauthorized) || errors.Is(err, remote.ErrForbidden) {
				return backoff.Permanent(err)
			}
			return err
		},
	}

	if s.replicator == nil {
		if err := w.Run(ctx); err != nil {
			log.Error().Err(err).Str("session_id", s.id).Str("write", name).Msg("Failed to sync write")
		}
		return
	}
	if !s.replicator.Submit(ctx, w) {
		s.Notify()
	}
}
