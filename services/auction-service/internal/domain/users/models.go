package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrUserNotFound = errors.New("user not found")

// User is the auction-side view of an account: who they are to viewers and what they can spend
type User struct {
	ID          uuid.UUID `db:"id"`
	DisplayName string    `db:"display_name"`
	Balance     int64     `db:"balance"` // in cents; negative only after a settlement debit
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Repository defines the interface for user balance persistence
type Repository interface {
	// GetUser retrieves a user; returns ErrUserNotFound when absent
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)

	// DebitBalance atomically subtracts amount within tx; returns ErrUserNotFound when no row matched
	DebitBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error
}
