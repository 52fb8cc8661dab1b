package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/auction-house/pkg/clock"
	"github.com/floroz/auction-house/pkg/database"
	"github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
)

// validateBid applies the ladder rules in order; the first failing rule wins.
// An empty reason means the bid is acceptable.
func validateBid(item *items.Item, amount int64, now time.Time) RejectReason {
	if item.IsSettled() {
		return RejectAlreadySettled
	}
	if !item.AcceptsBidsAt(now) {
		return RejectDeadlinePassed
	}
	if amount <= item.StartPrice {
		return RejectBelowStartingPrice
	}
	if amount <= item.CurrentHighestBid {
		return RejectBelowLadder
	}
	return ""
}

// Ledger validates and appends bids
type Ledger struct {
	txManager  database.TransactionManager
	bidRepo    BidRepository
	itemRepo   ItemRepository
	outboxRepo OutboxRepository
	feed       LiveFeed
	clock      clock.Clock
	logger     *slog.Logger
}

// NewLedger creates a new bid ledger. feed may be nil when live fan-out is disabled.
func NewLedger(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	itemRepo ItemRepository,
	outboxRepo OutboxRepository,
	feed LiveFeed,
	clk clock.Clock,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		txManager:  txManager,
		bidRepo:    bidRepo,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
		feed:       feed,
		clock:      clk,
		logger:     logger,
	}
}

// SubmitBid validates cmd against the item's current state and stores it on success.
// Rejections are returned as an Outcome; the error is reserved for storage faults.
func (l *Ledger) SubmitBid(ctx context.Context, cmd PlaceBidCommand) (*Outcome, error) {
	tx, err := l.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The row lock serializes this bid against other bids and against settlement
	item, err := l.itemRepo.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			return rejected(RejectItemNotFound), nil
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	// Read the clock under the lock so accepted bids are ordered by time as well as amount
	now := l.clock.Now()
	if reason := validateBid(item, cmd.Amount, now); reason != "" {
		l.logger.Debug("Bid rejected", "item_id", cmd.ItemID, "bidder_id", cmd.BidderID, "amount", cmd.Amount, "reason", reason)
		return rejected(reason), nil
	}

	bid := &Bid{
		ID:        uuid.New(),
		ItemID:    cmd.ItemID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		Message:   cmd.Message,
		CreatedAt: now,
	}

	if saveErr := l.bidRepo.SaveBid(ctx, tx, bid); saveErr != nil {
		return nil, fmt.Errorf("failed to save bid: %w", saveErr)
	}

	if updateErr := l.itemRepo.UpdateHighestBid(ctx, tx, cmd.ItemID, cmd.Amount); updateErr != nil {
		return nil, fmt.Errorf("failed to update highest bid: %w", updateErr)
	}

	payload, err := bidPlacedPayload(bid)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	if saveErr := l.outboxRepo.SaveEvent(ctx, tx, events.NewOutboxEvent(events.EventTypeBidPlaced, payload, now)); saveErr != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", saveErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	l.publishLive(ctx, bid, cmd.BidderName)

	return accepted(bid), nil
}

// BidHistory returns every accepted bid for the item, highest first
func (l *Ledger) BidHistory(ctx context.Context, itemID uuid.UUID) ([]*Bid, error) {
	history, err := l.bidRepo.GetBidsByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid history: %w", err)
	}
	return history, nil
}

// publishLive is best effort: the bid is already durable and the outbox carries it downstream
func (l *Ledger) publishLive(ctx context.Context, bid *Bid, bidderName string) {
	if l.feed == nil {
		return
	}
	if err := l.feed.PublishBid(ctx, bid, bidderName); err != nil {
		l.logger.Warn("Failed to publish live bid", "item_id", bid.ItemID, "bid_id", bid.ID, "error", err)
	}
}

func bidPlacedPayload(bid *Bid) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"bid_id":     bid.ID.String(),
		"item_id":    bid.ItemID.String(),
		"bidder_id":  bid.BidderID.String(),
		"amount":     bid.Amount,
		"message":    bid.Message,
		"created_at": bid.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}
