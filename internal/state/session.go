package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/remote"

	"github.com/rs/zerolog/log"
)

const minPasswordLength = 6

// SignInResult tells the caller what to do after an email sign-in
type SignInResult struct {
	// NeedsRegistration means the credentials were rejected and the email
	// is cached as pending for the register screen.
	NeedsRegistration bool `json:"needs_registration"`
}

// RegisterRequest carries the register form
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	AvatarIndex int    `json:"avatar_index"`
}

// SignInWithEmail signs in with a password. The reserved demo credentials
// load the demo identity without touching the backend.
func (s *Store) SignInWithEmail(ctx context.Context, email, password string) (SignInResult, error) {
	if isDemoLogin(email, password) {
		s.mutate(func() error {
			s.resetLocked()
			s.identity = models.Identity{Kind: models.IdentityDemo, UserID: demoUserID, Email: demoEmail}
			s.profile = demoProfile()
			s.active = demoActiveTrip()
			s.completed = demoCompletedTrips()
			s.screen = models.ScreenDashboard
			return nil
		})
		log.Info().Str("session_id", s.id).Msg("Demo identity signed in")
		return SignInResult{}, nil
	}

	epoch := s.begin()
	session, err := s.backend.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, remote.ErrInvalidCredentials) {
			if err := s.end(epoch, func() { s.pendingEmail = email }); err != nil {
				return SignInResult{}, err
			}
			return SignInResult{NeedsRegistration: true}, nil
		}
		s.end(epoch, nil)
		log.Error().Err(err).Str("session_id", s.id).Msg("Email sign-in failed")
		return SignInResult{}, fmt.Errorf("%w: sign in: %v", ErrRemoteUnavailable, err)
	}

	profile, err := s.loadProfile(ctx, session)
	if err != nil {
		s.end(epoch, nil)
		log.Error().Err(err).Str("session_id", s.id).Str("user_id", session.UserID).Msg("Failed to load profile")
		return SignInResult{}, fmt.Errorf("%w: load profile: %v", ErrRemoteUnavailable, err)
	}

	trips, err := s.backend.ListTrips(ctx, session.AccessToken, session.UserID)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id).Str("user_id", session.UserID).Msg("Failed to load trips")
		trips = nil
	}
	active, completed := splitTrips(trips)

	err = s.end(epoch, func() {
		s.resetLocked()
		s.identity = models.Identity{
			Kind:        models.IdentityRegistered,
			UserID:      session.UserID,
			Email:       session.Email,
			AccessToken: session.AccessToken,
		}
		s.profile = profile
		if profile.PreferredLanguage.Valid() {
			s.language = profile.PreferredLanguage
		}
		s.active = active
		s.completed = completed
		s.screen = models.ScreenDashboard
	})
	if err != nil {
		return SignInResult{}, err
	}

	log.Info().Str("session_id", s.id).Str("user_id", session.UserID).Int("trips", len(trips)).Msg("User signed in")
	return SignInResult{}, nil
}

// loadProfile fetches the profile row, creating it when the account has none
func (s *Store) loadProfile(ctx context.Context, session *remote.Session) (*models.Profile, error) {
	profile, err := s.backend.GetProfile(ctx, session.AccessToken, session.UserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return nil, err
	}

	s.mu.Lock()
	lang := s.language
	s.mu.Unlock()

	profile = newProfile(session.UserID, displayNameFromEmail(session.Email), lang, s.now())
	if session.Email != "" {
		profile.Email = strPtr(session.Email)
	}
	s.insertProfile(ctx, session.AccessToken, profile)
	return profile, nil
}

// splitTrips separates the newest active trip from the completed ones,
// keeping the backend's newest-first order.
func splitTrips(trips []*models.Trip) (*models.Trip, []*models.Trip) {
	var active *models.Trip
	completed := []*models.Trip{}
	for _, t := range trips {
		switch {
		case t.IsCompleted || t.Status == models.TripCompleted:
			t.IsCompleted = true
			completed = append(completed, t)
		case t.Status == models.TripActive:
			if active != nil {
				log.Warn().Str("trip_id", t.ID).Msg("Ignoring extra active trip")
				continue
			}
			active = t
		}
	}
	return active, completed
}

// SignInWithGoogle only routes to the auth screen; the federated login
// completes out of band.
func (s *Store) SignInWithGoogle(ctx context.Context) error {
	return s.mutate(func() error {
		s.screen = models.ScreenAuth
		return nil
	})
}

// SignInAsGuest starts an anonymous backend session, falling back to a
// purely local guest when the backend refuses or cannot be reached.
func (s *Store) SignInAsGuest(ctx context.Context) error {
	epoch := s.begin()
	name := guestName(s.intn(10000))

	s.mu.Lock()
	lang := s.language
	s.mu.Unlock()

	session, err := s.backend.SignInAnonymously(ctx)
	now := s.now()

	var identity models.Identity
	var profile *models.Profile
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("Anonymous sign-in unavailable, using local guest")
		profile = newProfile(localGuestID(now), name, lang, now)
		identity = models.Identity{Kind: models.IdentityGuest, UserID: profile.ID}
	} else {
		profile = newProfile(session.UserID, name, lang, now)
		identity = models.Identity{Kind: models.IdentityGuest, UserID: session.UserID, AccessToken: session.AccessToken}
		s.insertProfile(ctx, session.AccessToken, profile)
	}

	err = s.end(epoch, func() {
		s.resetLocked()
		s.identity = identity
		s.profile = profile
		s.screen = models.ScreenDashboard
	})
	if err != nil {
		return err
	}
	log.Info().Str("session_id", s.id).Str("user_id", identity.UserID).Bool("remote", identity.Remote()).Msg("Guest signed in")
	return nil
}

// RegisterUser creates an account and its profile. When the backend cannot
// be reached the profile is built locally.
func (s *Store) RegisterUser(ctx context.Context, req RegisterRequest) error {
	email := strings.TrimSpace(req.Email)
	displayName := strings.TrimSpace(req.DisplayName)
	if email == "" || displayName == "" || len(req.Password) < minPasswordLength {
		return ErrInvalidRegistration
	}

	epoch := s.begin()

	s.mu.Lock()
	lang := s.language
	s.mu.Unlock()

	session, err := s.backend.SignUp(ctx, email, req.Password)
	if errors.Is(err, remote.ErrEmailTaken) {
		s.end(epoch, nil)
		return ErrEmailTaken
	}
	now := s.now()

	var identity models.Identity
	var profile *models.Profile
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("Sign-up unavailable, creating local profile")
		profile = newProfile(localUserID(now), displayName, lang, now)
		identity = models.Identity{Kind: models.IdentityRegistered, UserID: profile.ID, Email: email}
	} else {
		profile = newProfile(session.UserID, displayName, lang, now)
		identity = models.Identity{
			Kind:        models.IdentityRegistered,
			UserID:      session.UserID,
			Email:       session.Email,
			AccessToken: session.AccessToken,
		}
	}
	profile.Email = strPtr(email)
	profile.AvatarURL = strPtr(avatarURL(req.AvatarIndex))
	if bio := strings.TrimSpace(req.Bio); bio != "" {
		profile.Bio = strPtr(bio)
	}

	if identity.Remote() {
		s.insertProfile(ctx, identity.AccessToken, profile)
	}

	err = s.end(epoch, func() {
		s.resetLocked()
		s.identity = identity
		s.profile = profile
		s.screen = models.ScreenDashboard
	})
	if err != nil {
		return err
	}
	log.Info().Str("session_id", s.id).Str("user_id", identity.UserID).Msg("User registered")
	return nil
}

// SignOut ends the backend session, if any, and resets the store. Queued
// writes get one more attempt first.
func (s *Store) SignOut(ctx context.Context) error {
	if s.replicator != nil && s.replicator.Pending(s.id) > 0 {
		if left := s.replicator.FlushOwner(ctx, s.id); left > 0 {
			log.Warn().Str("session_id", s.id).Int("pending", left).Msg("Signing out with unsynced writes")
		}
	}

	s.mu.Lock()
	identity := s.identity
	s.resetLocked()
	s.mu.Unlock()

	if s.replicator != nil {
		s.replicator.Drop(s.id)
	}
	s.Notify()

	if identity.AccessToken != "" {
		if err := s.backend.SignOut(ctx, identity.AccessToken); err != nil {
			log.Error().Err(err).Str("session_id", s.id).Str("user_id", identity.UserID).Msg("Remote sign-out failed")
		}
	}
	log.Info().Str("session_id", s.id).Str("user_id", identity.UserID).Msg("Signed out")
	return nil
}

// SetLanguage changes the interface language and the profile preference
func (s *Store) SetLanguage(ctx context.Context, lang models.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	var identity models.Identity
	var profile *models.Profile
	err := s.mutate(func() error {
		s.language = lang
		if s.profile != nil {
			s.profile.PreferredLanguage = lang
			s.profile.UpdatedAt = s.now()
			profile = cloneProfile(s.profile)
		}
		identity = s.identity
		return nil
	})
	if err != nil {
		return err
	}

	if profile != nil && identity.Remote() {
		s.syncProfile(ctx, identity, profile)
	}
	return nil
}

// SetScreen is the direct setter used for back navigation
func (s *Store) SetScreen(name string) error {
	screen, err := models.ParseScreen(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScreen, err)
	}
	return s.mutate(func() error {
		s.screen = screen
		return nil
	})
}

// SetPushToken records the device token used for notifications
func (s *Store) SetPushToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)

	var identity models.Identity
	var profile *models.Profile
	err := s.mutate(func() error {
		if s.profile == nil {
			return ErrNotSignedIn
		}
		if token == "" {
			s.profile.PushToken = nil
		} else {
			s.profile.PushToken = strPtr(token)
		}
		identity = s.identity
		profile = cloneProfile(s.profile)
		return nil
	})
	if err != nil {
		return err
	}

	if identity.Remote() {
		s.syncProfile(ctx, identity, profile)
	}
	return nil
}

// HandleAuthEvent applies a session change reported by the backend for
// the user of this store.
func (s *Store) HandleAuthEvent(ctx context.Context, evt remote.AuthEvent) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if !identity.Remote() || evt.UserID != identity.UserID {
		return
	}

	switch evt.Type {
	case remote.EventSignedOut:
		reset := false
		s.mutate(func() error {
			// another request may already have replaced the identity
			if s.identity.UserID == identity.UserID && s.identity.AccessToken == identity.AccessToken {
				s.resetLocked()
				reset = true
			}
			return nil
		})
		if reset {
			if s.replicator != nil {
				s.replicator.Drop(s.id)
			}
			log.Info().Str("session_id", s.id).Str("user_id", evt.UserID).Msg("Signed out elsewhere")
		}
	case remote.EventProfileUpdated:
		s.refreshProfile(ctx, identity)
	}
}

func (s *Store) refreshProfile(ctx context.Context, identity models.Identity) {
	// local writes still queued are newer than the row
	if s.replicator != nil && s.replicator.Pending(s.id) > 0 {
		return
	}

	epoch := s.begin()
	profile, err := s.backend.GetProfile(ctx, identity.AccessToken, identity.UserID)
	if err != nil {
		s.end(epoch, nil)
		log.Warn().Err(err).Str("session_id", s.id).Msg("Failed to refresh profile")
		return
	}
	s.end(epoch, func() {
		if s.identity.UserID == identity.UserID {
			s.profile = profile
		}
	})
}

// insertProfile creates the profile row. It shares the aggregate of later
// profile updates, so those wait behind it when it has to be retried.
func (s *Store) insertProfile(ctx context.Context, accessToken string, profile *models.Profile) {
	row := cloneProfile(profile)
	s.replicate(ctx, "profile:"+row.ID, "profile.insert", func(ctx context.Context) error {
		return s.backend.InsertProfile(ctx, accessToken, row)
	})
}

func (s *Store) syncProfile(ctx context.Context, identity models.Identity, profile *models.Profile) {
	s.replicate(ctx, "profile:"+profile.ID, "profile.update", func(ctx context.Context) error {
		return s.backend.UpdateProfile(ctx, identity.AccessToken, profile)
	})
}
