package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-house/services/auction-service/internal/domain/bids"
)

// PostgresBidRepository implements bids.BidRepository and settlement.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within the caller's transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_id, amount, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ItemID,
		bid.BidderID,
		bid.Amount,
		bid.Message,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidsByItemID retrieves all bids for an item, highest amount first
func (r *PostgresBidRepository) GetBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, amount, message, created_at
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC
	`
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*bids.Bid
	for rows.Next() {
		var bid bids.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.ItemID,
			&bid.BidderID,
			&bid.Amount,
			&bid.Message,
			&bid.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}

// GetHighestBid returns the winning candidate for an item, or nil when it has no bids.
// Amounts are unique per item, so the top row is unambiguous.
func (r *PostgresBidRepository) GetHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, amount, message, created_at
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC
		LIMIT 1
	`
	var bid bids.Bid
	err := tx.QueryRow(ctx, query, itemID).Scan(
		&bid.ID,
		&bid.ItemID,
		&bid.BidderID,
		&bid.Amount,
		&bid.Message,
		&bid.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return &bid, nil
}
