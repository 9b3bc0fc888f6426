package repository

import (
	"context"
	"errors"
	"fmt"

	"tnepic-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is wrapped by every lookup that matches no row
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique column already holds the value
	ErrConflict = errors.New("already exists")
)

const uniqueViolation = "23505"

// AccountRepository handles database operations for backend accounts
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, is_anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.IsAnonymous, account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("account email: %w", ErrConflict)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, is_anonymous, created_at
		FROM accounts
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetByEmail retrieves an account by email, case-insensitively
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, is_anonymous, created_at
		FROM accounts
		WHERE lower(email) = lower($1)
	`
	return r.scanOne(ctx, query, email)
}

func (r *AccountRepository) scanOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	var account models.Account
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.IsAnonymous, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}
