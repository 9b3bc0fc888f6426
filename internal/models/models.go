package models

import "time"

// IdentityKind tells how the current actor was authenticated
type IdentityKind string

const (
	IdentityAnonymous  IdentityKind = "anonymous"
	IdentityGuest      IdentityKind = "guest"
	IdentityDemo       IdentityKind = "demo"
	IdentityRegistered IdentityKind = "registered"
)

// Identity is the actor driving a session
type Identity struct {
	Kind   IdentityKind `json:"kind"`
	UserID string       `json:"user_id,omitempty"`
	Email  string       `json:"email,omitempty"`
	// AccessToken is the backend session token, empty for local-only identities.
	AccessToken string `json:"-"`
}

// Authenticated reports whether the identity is anything but anonymous
func (i Identity) Authenticated() bool {
	return i.Kind != "" && i.Kind != IdentityAnonymous
}

// Remote reports whether writes for this identity are replicated to the backend
func (i Identity) Remote() bool {
	return i.AccessToken != "" && (i.Kind == IdentityRegistered || i.Kind == IdentityGuest)
}

// Language is a supported interface language
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageTamil   Language = "ta"
	LanguageFrench  Language = "fr"
	LanguageGerman  Language = "de"
)

// Valid reports whether l is one of the supported languages
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageTamil, LanguageFrench, LanguageGerman:
		return true
	}
	return false
}

// Profile is the gamification read model of an identity
type Profile struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"display_name"`
	Email             *string   `json:"email,omitempty"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
	Bio               *string   `json:"bio,omitempty"`
	Level             int       `json:"level"`
	Tokens            int       `json:"tokens"`
	DharmaScore       int       `json:"dharma_score"`
	TotalTrips        int       `json:"total_trips"`
	TotalMemories     int       `json:"total_memories"`
	PreferredLanguage Language  `json:"preferred_language"`
	PushToken         *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DharmaProgress is the 0-99 progress bar value derived from the cumulative score
func (p *Profile) DharmaProgress() int {
	if p.DharmaScore <= 0 {
		return 0
	}
	return p.DharmaScore % 100
}

// TripStatus mirrors the status column of the trips table
type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Trip is a multi-destination itinerary with level-based progress
type Trip struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id,omitempty"`
	Title        string     `json:"title"`
	Duration     int        `json:"duration"`
	Destinations []string   `json:"destinations"`
	CurrentLevel int        `json:"current_level"`
	TotalLevels  int        `json:"total_levels"`
	Status       TripStatus `json:"status"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsCompleted  bool       `json:"is_completed"`
	TokensEarned int        `json:"tokens_earned"`
	DharmaEarned int        `json:"dharma_earned"`
	Memories     []Memory   `json:"memories"`
}

// Progress returns completed levels as a 0..100 percentage
func (t *Trip) Progress() int {
	if t.TotalLevels <= 0 {
		return 0
	}
	return t.CurrentLevel * 100 / t.TotalLevels
}

// Clone returns a deep copy of the trip
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	c := *t
	if t.Destinations != nil {
		c.Destinations = make([]string, len(t.Destinations))
		copy(c.Destinations, t.Destinations)
	}
	if t.Memories != nil {
		c.Memories = make([]Memory, len(t.Memories))
		copy(c.Memories, t.Memories)
	}
	if t.EndDate != nil {
		end := *t.EndDate
		c.EndDate = &end
	}
	return &c
}

// Memory is a captured artifact attached to a trip
type Memory struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	ImageURL  string    `json:"image_url"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Account is a backend credential row. Anonymous accounts have no email or password.
type Account struct {
	ID           string    `json:"id"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash []byte    `json:"-"`
	IsAnonymous  bool      `json:"is_anonymous"`
	CreatedAt    time.Time `json:"created_at"`
}
