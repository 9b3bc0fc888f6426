package state

import (
	"fmt"
	"strings"
	"time"

	"tnepic-backend/internal/models"
)

// newProfile returns a level 1 profile with zeroed stats
func newProfile(id, displayName string, lang models.Language, now time.Time) *models.Profile {
	return &models.Profile{
		ID:                id,
		DisplayName:       displayName,
		Level:             1,
		PreferredLanguage: lang,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func guestName(n int) string {
	return fmt.Sprintf("Guest_%d", n)
}

func localGuestID(now time.Time) string {
	return fmt.Sprintf("guest-%d", now.UnixMilli())
}

func localUserID(now time.Time) string {
	return fmt.Sprintf("user-%d", now.UnixMilli())
}

func avatarURL(index int) string {
	return fmt.Sprintf("/avatar-%d.png", index)
}

// displayNameFromEmail is used when a registered account has no profile row yet
func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local == "" {
		return "Explorer"
	}
	return local
}

// creditTrip folds a completed trip into the profile stats
func creditTrip(p *models.Profile, trip *models.Trip, now time.Time) {
	if p == nil || trip == nil {
		return
	}
	p.Tokens += trip.TokensEarned
	p.DharmaScore += trip.DharmaEarned
	p.TotalTrips++
	p.TotalMemories += len(trip.Memories)
	p.UpdatedAt = now
}

func cloneProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Email = clonePtr(p.Email)
	c.AvatarURL = clonePtr(p.AvatarURL)
	c.Bio = clonePtr(p.Bio)
	c.PushToken = clonePtr(p.PushToken)
	return &c
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
