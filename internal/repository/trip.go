package repository

import (
	"context"
	"fmt"

	"tnepic-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TripRepository handles database operations for trips and their memories
type TripRepository struct {
	db *pgxpool.Pool
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *pgxpool.Pool) *TripRepository {
	return &TripRepository{db: db}
}

// Create inserts a trip row. Re-inserting the same id is a no-op so retries stay idempotent.
func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (id, user_id, title, duration, destinations, current_level, total_levels,
			status, start_date, end_date, tokens_earned, dharma_earned, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		trip.ID, trip.UserID, trip.Title, trip.Duration, trip.Destinations, trip.CurrentLevel,
		trip.TotalLevels, string(trip.Status), trip.StartDate, trip.EndDate, trip.TokensEarned, trip.DharmaEarned,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// Update overwrites the progress and status columns of a trip owned by trip.UserID
func (r *TripRepository) Update(ctx context.Context, trip *models.Trip) error {
	query := `
		UPDATE trips
		SET current_level = $2, status = $3, end_date = $4, tokens_earned = $5, dharma_earned = $6, updated_at = now()
		WHERE id = $1 AND user_id = $7
	`
	result, err := r.db.Exec(ctx, query,
		trip.ID, trip.CurrentLevel, string(trip.Status), trip.EndDate, trip.TokensEarned, trip.DharmaEarned, trip.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip not found: %w", ErrNotFound)
	}
	return nil
}

// ListByUser returns the non-cancelled trips of a user, newest first, with memories attached
func (r *TripRepository) ListByUser(ctx context.Context, userID string) ([]*models.Trip, error) {
	query := `
		SELECT id, user_id, title, duration, destinations, current_level, total_levels,
			status, start_date, end_date, tokens_earned, dharma_earned
		FROM trips
		WHERE user_id = $1 AND status <> 'cancelled'
		ORDER BY start_date DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	byID := make(map[string]*models.Trip)
	for rows.Next() {
		var trip models.Trip
		var status string
		err := rows.Scan(
			&trip.ID, &trip.UserID, &trip.Title, &trip.Duration, &trip.Destinations, &trip.CurrentLevel,
			&trip.TotalLevels, &status, &trip.StartDate, &trip.EndDate, &trip.TokensEarned, &trip.DharmaEarned,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trip.Status = models.TripStatus(status)
		trip.IsCompleted = trip.Status == models.TripCompleted
		trip.Memories = []models.Memory{}
		trips = append(trips, &trip)
		byID[trip.ID] = &trip
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trips: %w", err)
	}

	if len(trips) == 0 {
		return trips, nil
	}

	memQuery := `
		SELECT m.id, m.trip_id, m.image_url, m.location, m.taken_at
		FROM memories m
		JOIN trips t ON t.id = m.trip_id
		WHERE t.user_id = $1
		ORDER BY m.taken_at ASC
	`
	memRows, err := r.db.Query(ctx, memQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer memRows.Close()

	for memRows.Next() {
		var m models.Memory
		if err := memRows.Scan(&m.ID, &m.TripID, &m.ImageURL, &m.Location, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		if trip, ok := byID[m.TripID]; ok {
			trip.Memories = append(trip.Memories, m)
		}
	}
	if err := memRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}

	return trips, nil
}

// AddMemory inserts a memory row. Re-inserting the same id is a no-op.
func (r *TripRepository) AddMemory(ctx context.Context, m *models.Memory) error {
	query := `
		INSERT INTO memories (id, trip_id, image_url, location, taken_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.TripID, m.ImageURL, m.Location, m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}
	return nil
}

// BelongsTo checks whether a trip is owned by the user
func (r *TripRepository) BelongsTo(ctx context.Context, tripID, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trips WHERE id = $1 AND user_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, tripID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trip owner: %w", err)
	}
	return exists, nil
}
