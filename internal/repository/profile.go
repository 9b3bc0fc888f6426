package repository

import (
	"context"
	"errors"
	"fmt"

	"tnepic-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a profile row. Re-inserting the same id is a no-op so retries stay idempotent.
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, display_name, email, avatar_url, bio, level, tokens, dharma_score,
			total_trips, total_memories, preferred_language, push_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.DisplayName, p.Email, p.AvatarURL, p.Bio, p.Level, p.Tokens, p.DharmaScore,
		p.TotalTrips, p.TotalMemories, string(p.PreferredLanguage), p.PushToken, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by its owner ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, display_name, email, avatar_url, bio, level, tokens, dharma_score,
			total_trips, total_memories, preferred_language, push_token, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var p models.Profile
	var lang string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.Bio, &p.Level, &p.Tokens, &p.DharmaScore,
		&p.TotalTrips, &p.TotalMemories, &lang, &p.PushToken, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.PreferredLanguage = models.Language(lang)
	return &p, nil
}

// Update overwrites the mutable profile columns
func (r *ProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles
		SET display_name = $2, avatar_url = $3, bio = $4, level = $5, tokens = $6, dharma_score = $7,
			total_trips = $8, total_memories = $9, preferred_language = $10, push_token = $11, updated_at = $12
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		p.ID, p.DisplayName, p.AvatarURL, p.Bio, p.Level, p.Tokens, p.DharmaScore,
		p.TotalTrips, p.TotalMemories, string(p.PreferredLanguage), p.PushToken, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %w", ErrNotFound)
	}
	return nil
}
