package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore persists credential rows
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// ProfileStore persists profile rows
type ProfileStore interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// TripStore persists trip and memory rows
type TripStore interface {
	Create(ctx context.Context, trip *models.Trip) error
	Update(ctx context.Context, trip *models.Trip) error
	ListByUser(ctx context.Context, userID string) ([]*models.Trip, error)
	AddMemory(ctx context.Context, memory *models.Memory) error
	BelongsTo(ctx context.Context, tripID, userID string) (bool, error)
}

// Options configures a PostgresBackend
type Options struct {
	JWTSecret      string
	TokenTTL       time.Duration
	AllowAnonymous bool
}

// PostgresBackend implements Backend on top of the repositories,
// enforcing row ownership the way row-level policies would.
type PostgresBackend struct {
	accounts AccountStore
	profiles ProfileStore
	trips    TripStore
	bus      EventBus
	tokens   *tokenIssuer
	opts     Options
}

// NewPostgresBackend creates a backend. The bus also carries sign-out
// revocations issued by other instances.
func NewPostgresBackend(accounts AccountStore, profiles ProfileStore, trips TripStore, bus EventBus, opts Options) *PostgresBackend {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if bus == nil {
		bus = NewMemoryBus()
	}
	return &PostgresBackend{
		accounts: accounts,
		profiles: profiles,
		trips:    trips,
		bus:      bus,
		tokens:   newTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		opts:     opts,
	}
}

// Start applies revocations published by any instance until ctx ends
func (b *PostgresBackend) Start(ctx context.Context) error {
	return b.bus.Subscribe(ctx, func(evt AuthEvent) {
		if evt.Type == EventSignedOut && evt.UserID != "" {
			b.tokens.revoke(evt.UserID, evt.At)
		}
	})
}

// SignInWithPassword verifies email and password
func (b *PostgresBackend) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	account, err := b.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account.IsAnonymous || len(account.PasswordHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := b.tokens.issue(account.ID, email, false)
	if err != nil {
		return nil, err
	}
	b.publish(ctx, EventSignedIn, account.ID)
	return session, nil
}

// SignUp creates a password account and signs it in
func (b *PostgresBackend) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        &email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := b.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	session, err := b.tokens.issue(account.ID, email, false)
	if err != nil {
		return nil, err
	}
	b.publish(ctx, EventSignedIn, account.ID)
	return session, nil
}

// SignInAnonymously creates an anonymous account and signs it in
func (b *PostgresBackend) SignInAnonymously(ctx context.Context) (*Session, error) {
	if !b.opts.AllowAnonymous {
		return nil, ErrAnonymousDisabled
	}

	account := &models.Account{
		ID:          uuid.New().String(),
		IsAnonymous: true,
		CreatedAt:   time.Now(),
	}
	if err := b.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create anonymous account: %w", err)
	}

	session, err := b.tokens.issue(account.ID, "", true)
	if err != nil {
		return nil, err
	}
	b.publish(ctx, EventSignedIn, account.ID)
	return session, nil
}

// SignOut revokes every session of the token's user
func (b *PostgresBackend) SignOut(ctx context.Context, accessToken string) error {
	claims, err := b.tokens.verify(accessToken)
	if err != nil {
		return err
	}
	now := time.Now()
	b.tokens.revoke(claims.Subject, now)
	if err := b.bus.Publish(ctx, AuthEvent{Type: EventSignedOut, UserID: claims.Subject, At: now}); err != nil {
		log.Error().Err(err).Str("user_id", claims.Subject).Msg("Failed to publish sign-out")
	}
	return nil
}

// Subscribe registers handler for session changes
func (b *PostgresBackend) Subscribe(ctx context.Context, handler func(AuthEvent)) error {
	return b.bus.Subscribe(ctx, handler)
}

// GetProfile returns the profile row of userID
func (b *PostgresBackend) GetProfile(ctx context.Context, accessToken, userID string) (*models.Profile, error) {
	if _, err := b.authorize(accessToken, userID); err != nil {
		return nil, err
	}
	profile, err := b.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return profile, nil
}

// InsertProfile creates the caller's profile row
func (b *PostgresBackend) InsertProfile(ctx context.Context, accessToken string, profile *models.Profile) error {
	if _, err := b.authorize(accessToken, profile.ID); err != nil {
		return err
	}
	return translate(b.profiles.Create(ctx, profile))
}

// UpdateProfile overwrites the caller's profile row
func (b *PostgresBackend) UpdateProfile(ctx context.Context, accessToken string, profile *models.Profile) error {
	if _, err := b.authorize(accessToken, profile.ID); err != nil {
		return err
	}
	if err := b.profiles.Update(ctx, profile); err != nil {
		return translate(err)
	}
	b.publish(ctx, EventProfileUpdated, profile.ID)
	return nil
}

// ListTrips returns the caller's trips, newest first
func (b *PostgresBackend) ListTrips(ctx context.Context, accessToken, userID string) ([]*models.Trip, error) {
	if _, err := b.authorize(accessToken, userID); err != nil {
		return nil, err
	}
	trips, err := b.trips.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return trips, nil
}

// InsertTrip creates a trip row owned by the caller
func (b *PostgresBackend) InsertTrip(ctx context.Context, accessToken string, trip *models.Trip) error {
	if _, err := b.authorize(accessToken, trip.UserID); err != nil {
		return err
	}
	return translate(b.trips.Create(ctx, trip))
}

// UpdateTrip updates a trip row owned by the caller
func (b *PostgresBackend) UpdateTrip(ctx context.Context, accessToken string, trip *models.Trip) error {
	if _, err := b.authorize(accessToken, trip.UserID); err != nil {
		return err
	}
	return translate(b.trips.Update(ctx, trip))
}

// InsertMemory attaches a memory to a trip owned by the caller
func (b *PostgresBackend) InsertMemory(ctx context.Context, accessToken string, memory *models.Memory) error {
	claims, err := b.tokens.verify(accessToken)
	if err != nil {
		return err
	}
	owned, err := b.trips.BelongsTo(ctx, memory.TripID, claims.Subject)
	if err != nil {
		return err
	}
	if !owned {
		return ErrForbidden
	}
	return translate(b.trips.AddMemory(ctx, memory))
}

func (b *PostgresBackend) authorize(accessToken, ownerID string) (*sessionClaims, error) {
	claims, err := b.tokens.verify(accessToken)
	if err != nil {
		return nil, err
	}
	if ownerID == "" || claims.Subject != ownerID {
		return nil, ErrForbidden
	}
	return claims, nil
}

func (b *PostgresBackend) publish(ctx context.Context, typ EventType, userID string) {
	if err := b.bus.Publish(ctx, AuthEvent{Type: typ, UserID: userID, At: time.Now()}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("event", string(typ)).Msg("Failed to publish auth event")
	}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
