package items

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for item persistence
type Repository interface {
	// CreateItem persists a new, unsettled item
	CreateItem(ctx context.Context, item *Item) error

	// GetItemByID retrieves an item by its ID; returns ErrItemNotFound when absent
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// GetItemByIDForUpdate retrieves an item and locks its row until tx ends.
	// Every bid and settlement for the same item is serialized on this lock.
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error)

	// UpdateHighestBid records the newest accepted bid amount within a transaction
	UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error

	// SetWinner writes winner_id only if it is still NULL; reports whether the row changed
	SetWinner(ctx context.Context, tx pgx.Tx, itemID, winnerID uuid.UUID, settledAt time.Time) (bool, error)

	// ListActiveItems returns every item whose winner is not set
	ListActiveItems(ctx context.Context) ([]*Item, error)

	// ListExpiredUnsettled returns unsettled items whose deadline is at or before now
	ListExpiredUnsettled(ctx context.Context, now time.Time) ([]*Item, error)

	// ListItemsByOwner returns the items listed by ownerID, oldest first
	ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Item, error)

	// ListItemsByWinner returns the items won by winnerID, most recently settled first
	ListItemsByWinner(ctx context.Context, winnerID uuid.UUID) ([]*Item, error)
}

// SettlementScheduler arms the in-process settlement timer for a new item
type SettlementScheduler interface {
	ArmSettlement(itemID uuid.UUID, at time.Time) bool
}
