package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the backend tables if they do not exist
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE,
			password_hash BYTEA,
			is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
			display_name TEXT NOT NULL,
			email TEXT,
			avatar_url TEXT,
			bio TEXT,
			level INTEGER NOT NULL DEFAULT 1,
			tokens INTEGER NOT NULL DEFAULT 0,
			dharma_score INTEGER NOT NULL DEFAULT 0,
			total_trips INTEGER NOT NULL DEFAULT 0,
			total_memories INTEGER NOT NULL DEFAULT 0,
			preferred_language TEXT NOT NULL DEFAULT 'en',
			push_token TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			duration INTEGER NOT NULL,
			destinations TEXT[] NOT NULL,
			current_level INTEGER NOT NULL DEFAULT 1,
			total_levels INTEGER NOT NULL,
			status TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ,
			tokens_earned INTEGER NOT NULL DEFAULT 0,
			dharma_earned INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS trips_user_id_idx ON trips(user_id, start_date DESC)`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
			image_url TEXT NOT NULL,
			location TEXT NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS memories_trip_id_idx ON memories(trip_id, taken_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
