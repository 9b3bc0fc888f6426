package state

import (
	"context"
	"fmt"
	"strings"

	"tnepic-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultTripTitle = "Tamil Nadu Adventure"

// StartNewTrip creates the active trip with two levels per destination
func (s *Store) StartNewTrip(ctx context.Context, duration int, destinations []string) error {
	if duration < 1 || len(destinations) == 0 {
		return fmt.Errorf("%w: duration %d, %d destinations", ErrInvalidTrip, duration, len(destinations))
	}
	for i, d := range destinations {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: destination %d is blank", ErrInvalidTrip, i)
		}
	}

	var identity models.Identity
	var trip *models.Trip
	err := s.mutate(func() error {
		if !s.identity.Authenticated() {
			return ErrNotSignedIn
		}
		if s.active != nil {
			return ErrTripAlreadyActive
		}
		s.active = &models.Trip{
			ID:           uuid.New().String(),
			UserID:       s.identity.UserID,
			Title:        defaultTripTitle,
			Duration:     duration,
			Destinations: append([]string(nil), destinations...),
			CurrentLevel: 1,
			TotalLevels:  2 * len(destinations),
			Status:       models.TripActive,
			StartDate:    s.now(),
			Memories:     []models.Memory{},
		}
		s.screen = models.ScreenMap
		identity = s.identity
		trip = s.active.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	tripsStarted.Inc()
	log.Info().Str("session_id", s.id).Str("trip_id", trip.ID).Int("levels", trip.TotalLevels).Msg("Trip started")
	if identity.Remote() {
		s.replicate(ctx, "trip:"+trip.ID, "trip.insert", func(ctx context.Context) error {
			return s.backend.InsertTrip(ctx, identity.AccessToken, trip)
		})
	}
	return nil
}

// CancelTrip discards the active trip. Without one it does nothing.
func (s *Store) CancelTrip(ctx context.Context) error {
	var identity models.Identity
	var trip *models.Trip
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	trip = s.active.Clone()
	trip.Status = models.TripCancelled
	s.active = nil
	s.screen = models.ScreenTripPlanning
	identity = s.identity
	s.mu.Unlock()
	s.Notify()

	tripsCancelled.Inc()
	log.Info().Str("session_id", s.id).Str("trip_id", trip.ID).Msg("Trip cancelled")
	if identity.Remote() {
		s.replicate(ctx, "trip:"+trip.ID, "trip.update", func(ctx context.Context) error {
			return s.backend.UpdateTrip(ctx, identity.AccessToken, trip)
		})
	}
	return nil
}

// CompleteTrip moves the active trip to the head of the completed list and
// credits its earnings to the profile. Without an active trip it does nothing.
func (s *Store) CompleteTrip(ctx context.Context) error {
	var identity models.Identity
	var trip *models.Trip
	var profile *models.Profile

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	now := s.now()
	completed := s.active
	if completed.CurrentLevel < completed.TotalLevels {
		log.Debug().Str("session_id", s.id).Str("trip_id", completed.ID).
			Int("level", completed.CurrentLevel).Int("total", completed.TotalLevels).Msg("Completing trip early")
	}
	completed.IsCompleted = true
	completed.Status = models.TripCompleted
	completed.EndDate = &now
	s.completed = append([]*models.Trip{completed}, s.completed...)
	s.active = nil
	creditTrip(s.profile, completed, now)
	s.screen = models.ScreenDashboard

	identity = s.identity
	trip = completed.Clone()
	profile = cloneProfile(s.profile)
	s.mu.Unlock()
	s.Notify()

	tripsCompleted.Inc()
	log.Info().Str("session_id", s.id).Str("trip_id", trip.ID).Int("tokens", trip.TokensEarned).Msg("Trip completed")

	if identity.Remote() {
		s.replicate(ctx, "trip:"+trip.ID, "trip.update", func(ctx context.Context) error {
			return s.backend.UpdateTrip(ctx, identity.AccessToken, trip)
		})
		if profile != nil {
			s.syncProfile(ctx, identity, profile)
		}
	}
	if s.onComplete != nil && profile != nil {
		s.onComplete(profile, trip)
	}
	return nil
}

// ResumeTrip returns to the map of the active trip. Without one it does nothing.
func (s *Store) ResumeTrip(ctx context.Context) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	s.screen = models.ScreenMap
	s.mu.Unlock()
	s.Notify()
	return nil
}

// AdvanceLevel records a finished AR level: the cursor moves forward
// (never past the last level), earnings accumulate and the lobby is shown.
func (s *Store) AdvanceLevel(ctx context.Context, tokens, dharma int) error {
	if tokens < 0 || dharma < 0 {
		return fmt.Errorf("%w: negative earnings", ErrInvalidTrip)
	}

	var identity models.Identity
	var trip *models.Trip
	err := s.mutate(func() error {
		if s.active == nil {
			return ErrNoActiveTrip
		}
		if s.active.CurrentLevel < s.active.TotalLevels {
			s.active.CurrentLevel++
		}
		s.active.TokensEarned += tokens
		s.active.DharmaEarned += dharma
		s.screen = models.ScreenLobby
		identity = s.identity
		trip = s.active.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	levelsCompleted.Inc()
	log.Debug().Str("session_id", s.id).Str("trip_id", trip.ID).Int("level", trip.CurrentLevel).Msg("Level completed")
	if identity.Remote() {
		s.replicate(ctx, "trip:"+trip.ID, "trip.update", func(ctx context.Context) error {
			return s.backend.UpdateTrip(ctx, identity.AccessToken, trip)
		})
	}
	return nil
}

// AddMemory attaches a captured image to the active trip
func (s *Store) AddMemory(ctx context.Context, imageURL, location string) (*models.Memory, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, fmt.Errorf("%w: image url required", ErrInvalidTrip)
	}

	var identity models.Identity
	var memory models.Memory
	err := s.mutate(func() error {
		if s.active == nil {
			return ErrNoActiveTrip
		}
		memory = models.Memory{
			ID:        uuid.New().String(),
			TripID:    s.active.ID,
			ImageURL:  imageURL,
			Location:  strings.TrimSpace(location),
			Timestamp: s.now(),
		}
		s.active.Memories = append(s.active.Memories, memory)
		identity = s.identity
		return nil
	})
	if err != nil {
		return nil, err
	}

	if identity.Remote() {
		mem := memory
		// after the trip insert, which shares the aggregate
		s.replicate(ctx, "trip:"+mem.TripID, "memory.insert", func(ctx context.Context) error {
			return s.backend.InsertMemory(ctx, identity.AccessToken, &mem)
		})
	}
	return &memory, nil
}
