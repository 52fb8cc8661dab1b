package items

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/floroz/auction-house/pkg/clock"
)

// Service errors
var (
	ErrInvalidStartPrice = errors.New("start price must be greater than 0")
	ErrItemNotFound      = errors.New("item not found")
)

// CreateItemCommand represents the command to list a new item
type CreateItemCommand struct {
	OwnerID    uuid.UUID
	Name       string
	StartPrice int64
}

// Registry records listed items and arms their settlement
type Registry struct {
	repo      Repository
	scheduler SettlementScheduler
	clock     clock.Clock
	logger    *slog.Logger
}

// NewRegistry creates a new item registry
func NewRegistry(repo Repository, scheduler SettlementScheduler, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		repo:      repo,
		scheduler: scheduler,
		clock:     clk,
		logger:    logger,
	}
}

// CreateItem persists the item and arms a one-shot settlement at its deadline
func (r *Registry) CreateItem(ctx context.Context, cmd CreateItemCommand) (*Item, error) {
	if cmd.StartPrice <= 0 {
		return nil, ErrInvalidStartPrice
	}

	now := r.clock.Now()
	item := &Item{
		ID:         uuid.New(),
		OwnerID:    cmd.OwnerID,
		Name:       cmd.Name,
		StartPrice: cmd.StartPrice,
		CreatedAt:  now,
		EndAt:      DeadlineFor(now),
		UpdatedAt:  now,
	}

	if err := r.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	r.scheduler.ArmSettlement(item.ID, item.EndAt)
	r.logger.Info("Item listed", "item_id", item.ID, "owner_id", item.OwnerID, "end_at", item.EndAt)

	return item, nil
}

// GetItem retrieves an item by ID
func (r *Registry) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	item, err := r.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListActiveItems returns all unsettled items
func (r *Registry) ListActiveItems(ctx context.Context) ([]*Item, error) {
	items, err := r.repo.ListActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	return items, nil
}

// ListOwnerItems returns the items listed by ownerID
func (r *Registry) ListOwnerItems(ctx context.Context, ownerID uuid.UUID) ([]*Item, error) {
	items, err := r.repo.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner items: %w", err)
	}
	return items, nil
}

// ListWonItems returns the items won by winnerID
func (r *Registry) ListWonItems(ctx context.Context, winnerID uuid.UUID) ([]*Item, error) {
	items, err := r.repo.ListItemsByWinner(ctx, winnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list won items: %w", err)
	}
	return items, nil
}
