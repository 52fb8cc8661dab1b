package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/auction-house/pkg/database"
	"github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/users"
)

// Engine finalizes expired auctions exactly once
type Engine struct {
	txManager   database.TransactionManager
	itemRepo    ItemRepository
	bidRepo     BidRepository
	balanceRepo BalanceRepository
	outboxRepo  OutboxRepository
	alerter     Alerter
	logger      *slog.Logger
}

// NewEngine creates a new settlement engine
func NewEngine(
	txManager database.TransactionManager,
	itemRepo ItemRepository,
	bidRepo BidRepository,
	balanceRepo BalanceRepository,
	outboxRepo OutboxRepository,
	alerter Alerter,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		txManager:   txManager,
		itemRepo:    itemRepo,
		bidRepo:     bidRepo,
		balanceRepo: balanceRepo,
		outboxRepo:  outboxRepo,
		alerter:     alerter,
		logger:      logger,
	}
}

// Settle assigns the item to its highest bidder and debits them, or reports why nothing changed.
// Calling it again for a settled item is a no-op returning StatusAlreadySettled.
func (e *Engine) Settle(ctx context.Context, itemID uuid.UUID, now time.Time) (*Result, error) {
	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Same row lock as the ledger: no bid can land between reading the winner and writing it
	item, err := e.itemRepo.GetItemByIDForUpdate(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	if item.IsSettled() {
		return alreadySettled(item), nil
	}

	if !item.IsExpiredAt(now) {
		return nil, fmt.Errorf("%w: item %s ends at %s", ErrAuctionOpen, itemID, item.EndAt.Format(time.RFC3339))
	}

	winning, err := e.bidRepo.GetHighestBid(ctx, tx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	if winning == nil {
		e.logger.Info("Auction ended without bids", "item_id", itemID)
		return &Result{ItemID: itemID, Status: StatusNoBids}, nil
	}

	updated, err := e.itemRepo.SetWinner(ctx, tx, itemID, winning.BidderID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to set winner: %w", err)
	}
	if !updated {
		return &Result{ItemID: itemID, Status: StatusAlreadySettled}, nil
	}

	if err := e.balanceRepo.DebitBalance(ctx, tx, winning.BidderID, winning.Amount); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			// Undo the winner write before alerting so the item stays retryable
			_ = tx.Rollback(ctx)
			return nil, e.integrityFailure(ctx, itemID, winning.BidderID, winning.Amount, now)
		}
		return nil, fmt.Errorf("failed to debit winner: %w", err)
	}

	payload, err := itemSettledPayload(itemID, winning.BidderID, winning.Amount, now)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := e.outboxRepo.SaveEvent(ctx, tx, events.NewOutboxEvent(events.EventTypeItemSettled, payload, now)); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	e.logger.Info("Item settled", "item_id", itemID, "winner_id", winning.BidderID, "amount", winning.Amount)

	return &Result{
		ItemID:   itemID,
		Status:   StatusSettled,
		WinnerID: winning.BidderID,
		Amount:   winning.Amount,
	}, nil
}

// integrityFailure reports a settlement that rolled back on missing user data
func (e *Engine) integrityFailure(ctx context.Context, itemID, winnerID uuid.UUID, amount int64, now time.Time) error {
	integrityErr := &IntegrityError{
		ItemID:   itemID,
		WinnerID: winnerID,
		Amount:   amount,
		Err:      ErrWinnerNotFound,
	}

	e.logger.Error("Settlement integrity failure",
		"alert", true,
		"item_id", itemID,
		"winner_id", winnerID,
		"amount", amount,
		"error", integrityErr,
	)

	if e.alerter != nil {
		failure := Failure{
			ItemID:     itemID,
			WinnerID:   winnerID,
			Amount:     amount,
			Reason:     ErrWinnerNotFound.Error(),
			OccurredAt: now,
		}
		if err := e.alerter.SettlementFailed(ctx, failure); err != nil {
			e.logger.Error("Failed to raise settlement alert", "alert", true, "item_id", itemID, "error", err)
		}
	}

	return integrityErr
}

func alreadySettled(item *items.Item) *Result {
	result := &Result{ItemID: item.ID, Status: StatusAlreadySettled}
	if item.WinnerID != nil {
		result.WinnerID = *item.WinnerID
	}
	return result
}

func itemSettledPayload(itemID, winnerID uuid.UUID, amount int64, settledAt time.Time) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"item_id":    itemID.String(),
		"winner_id":  winnerID.String(),
		"amount":     amount,
		"settled_at": settledAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}
