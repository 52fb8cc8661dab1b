package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/bids"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
)

// ItemRepository is the slice of item persistence settlement needs
type ItemRepository interface {
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error)
	SetWinner(ctx context.Context, tx pgx.Tx, itemID, winnerID uuid.UUID, settledAt time.Time) (bool, error)
}

// BidRepository finds the winning bid
type BidRepository interface {
	// GetHighestBid returns nil and no error when the item has no bids
	GetHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*bids.Bid, error)
}

// BalanceRepository debits the winner
type BalanceRepository interface {
	DebitBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error
}

// OutboxRepository stores domain events in the caller's transaction
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// Alerter delivers integrity failures to operators
type Alerter interface {
	SettlementFailed(ctx context.Context, failure Failure) error
}
