package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-house/services/auction-service/internal/domain/users"
)

// PostgresUserRepository implements users.Repository using pgx
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// CreateUser provisions a user with an opening balance
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *users.User) error {
	query := `
		INSERT INTO users (id, display_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.DisplayName,
		user.Balance,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *PostgresUserRepository) GetUser(ctx context.Context, userID uuid.UUID) (*users.User, error) {
	query := `
		SELECT id, display_name, balance, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user users.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// DebitBalance subtracts amount in a single UPDATE so concurrent settlements
// for the same user never lose a write
func (r *PostgresUserRepository) DebitBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}

	return nil
}
