package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAccounts struct {
	mu   sync.Mutex
	rows map[string]*models.Account
}

func (m *memAccounts) Create(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Email != nil {
		for _, row := range m.rows {
			if row.Email != nil && strings.EqualFold(*row.Email, *a.Email) {
				return fmt.Errorf("account email: %w", repository.ErrConflict)
			}
		}
	}
	m.rows[a.ID] = a
	return nil
}

func (m *memAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("account not found: %w", repository.ErrNotFound)
}

func (m *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Email != nil && strings.EqualFold(*a.Email, email) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", repository.ErrNotFound)
}

type memProfiles struct {
	mu   sync.Mutex
	rows map[string]models.Profile
}

func (m *memProfiles) Create(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = *p
	return nil
}

func (m *memProfiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("profile not found: %w", repository.ErrNotFound)
	}
	return &p, nil
}

func (m *memProfiles) Update(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return fmt.Errorf("profile not found: %w", repository.ErrNotFound)
	}
	m.rows[p.ID] = *p
	return nil
}

type memTrips struct {
	mu       sync.Mutex
	rows     map[string]*models.Trip
	memories []models.Memory
}

func (m *memTrips) Create(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		m.rows[t.ID] = t.Clone()
	}
	return nil
}

func (m *memTrips) Update(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[t.ID]
	if !ok || row.UserID != t.UserID {
		return fmt.Errorf("trip not found: %w", repository.ErrNotFound)
	}
	m.rows[t.ID] = t.Clone()
	return nil
}

func (m *memTrips) ListByUser(ctx context.Context, userID string) ([]*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trip
	for _, t := range m.rows {
		if t.UserID == userID && t.Status != models.TripCancelled {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *memTrips) AddMemory(ctx context.Context, mem *models.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memories = append(m.memories, *mem)
	return nil
}

func (m *memTrips) BelongsTo(ctx context.Context, tripID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[tripID]
	return ok && t.UserID == userID, nil
}

func newTestBackend(allowAnon bool) (*PostgresBackend, *memTrips) {
	trips := &memTrips{rows: map[string]*models.Trip{}}
	b := NewPostgresBackend(
		&memAccounts{rows: map[string]*models.Account{}},
		&memProfiles{rows: map[string]models.Profile{}},
		trips,
		NewMemoryBus(),
		Options{JWTSecret: "test-secret", AllowAnonymous: allowAnon},
	)
	return b, trips
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(true)

	session, err := b.SignUp(ctx, "Asha@Example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, session.UserID)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "asha@example.com", session.Email)

	_, err = b.SignUp(ctx, "asha@example.com", "other-pass")
	assert.ErrorIs(t, err, ErrEmailTaken)

	again, err := b.SignInWithPassword(ctx, "ASHA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, again.UserID)

	_, err = b.SignInWithPassword(ctx, "asha@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = b.SignInWithPassword(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAnonymousSignIn(t *testing.T) {
	ctx := context.Background()

	b, _ := newTestBackend(false)
	_, err := b.SignInAnonymously(ctx)
	assert.ErrorIs(t, err, ErrAnonymousDisabled)

	b, _ = newTestBackend(true)
	session, err := b.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.True(t, session.Anonymous)
	assert.Empty(t, session.Email)
}

func TestRowOwnership(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(true)

	alice, err := b.SignUp(ctx, "alice@example.com", "password1")
	require.NoError(t, err)
	bob, err := b.SignUp(ctx, "bob@example.com", "password2")
	require.NoError(t, err)

	profile := &models.Profile{ID: alice.UserID, DisplayName: "Alice", Level: 1}
	require.NoError(t, b.InsertProfile(ctx, alice.AccessToken, profile))

	_, err = b.GetProfile(ctx, bob.AccessToken, alice.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := b.GetProfile(ctx, alice.AccessToken, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = b.GetProfile(ctx, bob.AccessToken, bob.UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	trip := &models.Trip{ID: "trip-1", UserID: alice.UserID, Status: models.TripActive}
	assert.ErrorIs(t, b.InsertTrip(ctx, bob.AccessToken, trip), ErrForbidden)
	require.NoError(t, b.InsertTrip(ctx, alice.AccessToken, trip))

	mem := &models.Memory{ID: "m1", TripID: "trip-1", ImageURL: "x", Timestamp: time.Now()}
	assert.ErrorIs(t, b.InsertMemory(ctx, bob.AccessToken, mem), ErrForbidden)
	require.NoError(t, b.InsertMemory(ctx, alice.AccessToken, mem))

	_, err = b.GetProfile(ctx, "garbage", alice.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSignOutRevokesAndNotifies(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(true)
	require.NoError(t, b.Start(ctx))

	var events []AuthEvent
	require.NoError(t, b.Subscribe(ctx, func(evt AuthEvent) { events = append(events, evt) }))

	session, err := b.SignUp(ctx, "carol@example.com", "password3")
	require.NoError(t, err)
	second, err := b.SignInWithPassword(ctx, "carol@example.com", "password3")
	require.NoError(t, err)

	require.NoError(t, b.SignOut(ctx, session.AccessToken))

	_, err = b.ListTrips(ctx, session.AccessToken, session.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = b.ListTrips(ctx, second.AccessToken, second.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized, "sign-out covers every session of the user")

	fresh, err := b.SignInWithPassword(ctx, "carol@example.com", "password3")
	require.NoError(t, err)
	_, err = b.ListTrips(ctx, fresh.AccessToken, fresh.UserID)
	assert.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, EventSignedIn, events[0].Type)
	var sawSignOut bool
	for _, evt := range events {
		if evt.Type == EventSignedOut {
			sawSignOut = true
			assert.Equal(t, session.UserID, evt.UserID)
		}
	}
	assert.True(t, sawSignOut)
}

func TestTokenExpiry(t *testing.T) {
	issuer := newTokenIssuer("secret", time.Minute)
	base := time.Now()
	issuer.now = func() time.Time { return base }

	session, err := issuer.issue("u1", "", true)
	require.NoError(t, err)

	_, err = issuer.verify(session.AccessToken)
	require.NoError(t, err)

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = issuer.verify(session.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
