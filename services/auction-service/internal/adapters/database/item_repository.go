package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/floroz/auction-house/pkg/database"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
)

const itemColumns = `id, owner_id, name, start_price, current_highest_bid, winner_id, created_at, end_at, settled_at, updated_at`

// PostgresItemRepository implements items.Repository using pgx
type PostgresItemRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// CreateItem inserts a new unsettled item
func (r *PostgresItemRepository) CreateItem(ctx context.Context, item *items.Item) error {
	query := `
		INSERT INTO items (id, owner_id, name, start_price, current_highest_bid, created_at, end_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.OwnerID,
		item.Name,
		item.StartPrice,
		item.CurrentHighestBid,
		item.CreatedAt,
		item.EndAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetItemByID retrieves an item by its ID (non-transactional read)
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*items.Item, error) {
	return r.getItemByID(ctx, r.pool, itemID, false)
}

// GetItemByIDForUpdate retrieves an item by its ID and locks it for update (transactional)
// This serializes bids and settlement on the same item
func (r *PostgresItemRepository) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error) {
	return r.getItemByID(ctx, tx, itemID, true)
}

// getItemByID is the internal implementation that works with any DBTX
func (r *PostgresItemRepository) getItemByID(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID, forUpdate bool) (*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	item, err := scanItem(db.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, items.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// UpdateHighestBid updates the current highest bid for an item within a transaction
func (r *PostgresItemRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error {
	query := `
		UPDATE items
		SET current_highest_bid = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, amount, itemID)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return items.ErrItemNotFound
	}

	return nil
}

// SetWinner records the winner only while winner_id is still NULL
func (r *PostgresItemRepository) SetWinner(ctx context.Context, tx pgx.Tx, itemID, winnerID uuid.UUID, settledAt time.Time) (bool, error) {
	query := `
		UPDATE items
		SET winner_id = $1, settled_at = $2, updated_at = NOW()
		WHERE id = $3 AND winner_id IS NULL
	`
	result, err := tx.Exec(ctx, query, winnerID, settledAt, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to set winner: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListActiveItems returns every unsettled item, soonest deadline first
func (r *PostgresItemRepository) ListActiveItems(ctx context.Context) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE winner_id IS NULL ORDER BY end_at ASC`
	return r.listItems(ctx, query)
}

// ListExpiredUnsettled returns unsettled items whose deadline is at or before now
func (r *PostgresItemRepository) ListExpiredUnsettled(ctx context.Context, now time.Time) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE winner_id IS NULL AND end_at <= $1 ORDER BY end_at ASC`
	return r.listItems(ctx, query, now)
}

// ListItemsByOwner returns the items listed by ownerID, oldest first
func (r *PostgresItemRepository) ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_id = $1 ORDER BY created_at ASC`
	return r.listItems(ctx, query, ownerID)
}

// ListItemsByWinner returns the items won by winnerID, most recently settled first
func (r *PostgresItemRepository) ListItemsByWinner(ctx context.Context, winnerID uuid.UUID) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE winner_id = $1 ORDER BY settled_at DESC`
	return r.listItems(ctx, query, winnerID)
}

func (r *PostgresItemRepository) listItems(ctx context.Context, query string, args ...any) ([]*items.Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var result []*items.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return result, nil
}

func scanItem(row pgx.Row) (*items.Item, error) {
	var item items.Item
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Name,
		&item.StartPrice,
		&item.CurrentHighestBid,
		&item.WinnerID,
		&item.CreatedAt,
		&item.EndAt,
		&item.SettledAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
