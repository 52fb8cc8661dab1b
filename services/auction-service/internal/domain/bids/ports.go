package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
)

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetBidsByItemID retrieves all bids for an item, highest amount first
	GetBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*Bid, error)
}

// ItemRepository is the slice of item persistence the ledger needs
type ItemRepository interface {
	// GetItemByIDForUpdate locks the item row for the rest of tx
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error)

	// UpdateHighestBid updates the current highest bid for an item within a transaction
	UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error
}

// OutboxRepository stores domain events in the caller's transaction
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// LiveFeed fans an accepted bid out to viewers of the item, keyed by item id
type LiveFeed interface {
	PublishBid(ctx context.Context, bid *Bid, bidderName string) error
}
