package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/auction-house/services/auction-service/internal/domain/bids"
)

// redisPublisher is the part of the go-redis client the feed uses
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// LiveBidMessage is what viewers of an item receive for each accepted bid
type LiveBidMessage struct {
	ItemID     string    `json:"item_id"`
	BidID      string    `json:"bid_id"`
	Amount     int64     `json:"amount"`
	Message    string    `json:"message"`
	BidderName string    `json:"bidder_name"`
	PlacedAt   time.Time `json:"placed_at"`
}

// RedisBidFeed implements bids.LiveFeed over Redis Pub/Sub. The channel is the item id.
type RedisBidFeed struct {
	client redisPublisher
}

// NewRedisBidFeed creates a live feed on top of a go-redis client
func NewRedisBidFeed(client redisPublisher) *RedisBidFeed {
	return &RedisBidFeed{client: client}
}

// PublishBid sends the bid to every subscriber of the item's channel
func (f *RedisBidFeed) PublishBid(ctx context.Context, bid *bids.Bid, bidderName string) error {
	body, err := json.Marshal(LiveBidMessage{
		ItemID:     bid.ItemID.String(),
		BidID:      bid.ID.String(),
		Amount:     bid.Amount,
		Message:    bid.Message,
		BidderName: bidderName,
		PlacedAt:   bid.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal live bid: %w", err)
	}

	if err := f.client.Publish(ctx, bid.ItemID.String(), body).Err(); err != nil {
		return fmt.Errorf("failed to publish live bid: %w", err)
	}
	return nil
}
