package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"tnepic-backend/internal/models"
	"tnepic-backend/internal/remote"
)

var errOffline = errors.New("dial tcp: connection refused")

// fakeBackend records calls and serves rows from memory
type fakeBackend struct {
	mu sync.Mutex

	calls    map[string]int
	accounts map[string]string // email -> password
	profiles map[string]*models.Profile
	trips    map[string]*models.Trip
	memories []models.Memory

	offline     bool
	anonDenied  bool
	failWrites  int // fail this many trip/profile/memory writes
	failInserts int // fail this many profile inserts
	// onUpdateProfile runs inside UpdateProfile before the row is written
	onUpdateProfile func()
	signInGate  chan struct{}
	signInStart chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:    make(map[string]int),
		accounts: make(map[string]string),
		profiles: make(map[string]*models.Profile),
		trips:    make(map[string]*models.Trip),
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.offline {
		return errOffline
	}
	return nil
}

func (f *fakeBackend) writeFails() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites > 0 {
		f.failWrites--
		return true
	}
	return false
}

func (f *fakeBackend) session(email string, anon bool) *remote.Session {
	id := "user-" + email
	if anon {
		id = "anon-1"
	}
	return &remote.Session{UserID: id, Email: email, AccessToken: "token-" + id, Anonymous: anon, ExpiresAt: time.Now().Add(time.Hour)}
}

func (f *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	if err := f.record("SignInWithPassword"); err != nil {
		return nil, err
	}
	if f.signInStart != nil {
		close(f.signInStart)
	}
	if f.signInGate != nil {
		<-f.signInGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.accounts[email]; !ok || pw != password {
		return nil, remote.ErrInvalidCredentials
	}
	return f.session(email, false), nil
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*remote.Session, error) {
	if err := f.record("SignUp"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return nil, remote.ErrEmailTaken
	}
	f.accounts[email] = password
	return f.session(email, false), nil
}

func (f *fakeBackend) SignInAnonymously(ctx context.Context) (*remote.Session, error) {
	if err := f.record("SignInAnonymously"); err != nil {
		return nil, err
	}
	if f.anonDenied {
		return nil, remote.ErrAnonymousDisabled
	}
	return f.session("", true), nil
}

func (f *fakeBackend) SignOut(ctx context.Context, accessToken string) error {
	return f.record("SignOut")
}

func (f *fakeBackend) Subscribe(ctx context.Context, handler func(remote.AuthEvent)) error {
	return f.record("Subscribe")
}

func (f *fakeBackend) GetProfile(ctx context.Context, accessToken, userID string) (*models.Profile, error) {
	if err := f.record("GetProfile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (f *fakeBackend) InsertProfile(ctx context.Context, accessToken string, profile *models.Profile) error {
	if err := f.record("InsertProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts > 0 {
		f.failInserts--
		return errOffline
	}
	f.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, accessToken string, profile *models.Profile) error {
	if err := f.record("UpdateProfile"); err != nil {
		return err
	}
	if f.writeFails() {
		return errOffline
	}
	f.mu.Lock()
	hook := f.onUpdateProfile
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[profile.ID]; !ok {
		return remote.ErrNotFound
	}
	f.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (f *fakeBackend) ListTrips(ctx context.Context, accessToken, userID string) ([]*models.Trip, error) {
	if err := f.record("ListTrips"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Trip
	for _, t := range f.trips {
		if t.UserID == userID && t.Status != models.TripCancelled {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (f *fakeBackend) InsertTrip(ctx context.Context, accessToken string, trip *models.Trip) error {
	if err := f.record("InsertTrip"); err != nil {
		return err
	}
	if f.writeFails() {
		return errOffline
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips[trip.ID] = trip.Clone()
	return nil
}

func (f *fakeBackend) UpdateTrip(ctx context.Context, accessToken string, trip *models.Trip) error {
	if err := f.record("UpdateTrip"); err != nil {
		return err
	}
	if f.writeFails() {
		return errOffline
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trips[trip.ID]; !ok {
		return remote.ErrNotFound
	}
	f.trips[trip.ID] = trip.Clone()
	return nil
}

func (f *fakeBackend) InsertMemory(ctx context.Context, accessToken string, memory *models.Memory) error {
	if err := f.record("InsertMemory"); err != nil {
		return err
	}
	if f.writeFails() {
		return errOffline
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories = append(f.memories, *memory)
	return nil
}

func (f *fakeBackend) profile(id string) *models.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneProfile(f.profiles[id])
}

func (f *fakeBackend) trip(id string) *models.Trip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trips[id].Clone()
}
