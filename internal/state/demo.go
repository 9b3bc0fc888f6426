package state

import (
	"strings"
	"time"

	"tnepic-backend/internal/models"
)

const (
	demoUsername = "bhargava"
	demoEmail    = "bhargava@tnepic.com"
	demoPassword = "bhargava"
	demoUserID   = "demo-bhargava-001"
)

// isDemoLogin matches the reserved offline demo credentials. The identifier
// is case-insensitive, the password is not.
func isDemoLogin(identifier, password string) bool {
	id := strings.ToLower(strings.TrimSpace(identifier))
	return (id == demoUsername || id == demoEmail) && password == demoPassword
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func demoProfile() *models.Profile {
	return &models.Profile{
		ID:                demoUserID,
		DisplayName:       "Bhargava",
		Email:             strPtr(demoEmail),
		AvatarURL:         strPtr("/avatar-explorer.png"),
		Level:             5,
		Tokens:            1250,
		DharmaScore:       340,
		TotalTrips:        4,
		TotalMemories:     12,
		PreferredLanguage: models.LanguageEnglish,
		CreatedAt:         day(2025, time.December, 1),
		UpdatedAt:         day(2025, time.December, 28),
	}
}

func demoActiveTrip() *models.Trip {
	return &models.Trip{
		ID:           "demo-trip-001",
		UserID:       demoUserID,
		Title:        "Thanjavur Heritage Journey",
		Duration:     3,
		Destinations: []string{"Brihadeeswara Temple", "Art Gallery", "Palace"},
		CurrentLevel: 2,
		TotalLevels:  6,
		Status:       models.TripActive,
		StartDate:    day(2025, time.December, 26),
		TokensEarned: 45,
		DharmaEarned: 25,
		Memories:     []models.Memory{},
	}
}

func demoCompletedTrips() []*models.Trip {
	return []*models.Trip{
		{
			ID:           "demo-trip-002",
			UserID:       demoUserID,
			Title:        "Madurai Temple Trail",
			Duration:     2,
			Destinations: []string{"Meenakshi Temple", "Thirumalai Nayakkar Palace"},
			CurrentLevel: 4,
			TotalLevels:  4,
			Status:       models.TripCompleted,
			StartDate:    day(2025, time.December, 20),
			EndDate:      timePtr(day(2025, time.December, 21)),
			IsCompleted:  true,
			TokensEarned: 180,
			DharmaEarned: 95,
			Memories: []models.Memory{
				{
					ID:        "1",
					TripID:    "demo-trip-002",
					ImageURL:  "https://images.unsplash.com/photo-1582510003544-4d00b7f74220?w=200",
					Location:  "Temple Entrance",
					Timestamp: day(2025, time.December, 20),
				},
				{
					ID:        "2",
					TripID:    "demo-trip-002",
					ImageURL:  "https://images.unsplash.com/photo-1590077428593-a55bb07c4665?w=200",
					Location:  "Inner Sanctum",
					Timestamp: day(2025, time.December, 21),
				},
			},
		},
		{
			ID:           "demo-trip-003",
			UserID:       demoUserID,
			Title:        "Mahabalipuram Discovery",
			Duration:     1,
			Destinations: []string{"Shore Temple", "Five Rathas"},
			CurrentLevel: 2,
			TotalLevels:  2,
			Status:       models.TripCompleted,
			StartDate:    day(2025, time.December, 15),
			EndDate:      timePtr(day(2025, time.December, 15)),
			IsCompleted:  true,
			TokensEarned: 120,
			DharmaEarned: 60,
			Memories:     []models.Memory{},
		},
		{
			ID:           "demo-trip-004",
			UserID:       demoUserID,
			Title:        "Kanyakumari Coastal Quest",
			Duration:     2,
			Destinations: []string{"Vivekananda Rock", "Thiruvalluvar Statue"},
			CurrentLevel: 3,
			TotalLevels:  3,
			Status:       models.TripCompleted,
			StartDate:    day(2025, time.December, 10),
			EndDate:      timePtr(day(2025, time.December, 11)),
			IsCompleted:  true,
			TokensEarned: 150,
			DharmaEarned: 80,
			Memories:     []models.Memory{},
		},
	}
}
