package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auction-house/services/auction-service/internal/domain/bids"
)

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

func TestRedisBidFeed_PublishBid(t *testing.T) {
	client := &fakeRedis{}
	feed := NewRedisBidFeed(client)

	bid := &bids.Bid{
		ID:        uuid.New(),
		ItemID:    uuid.New(),
		BidderID:  uuid.New(),
		Amount:    1700,
		Message:   "going once",
		CreatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	err := feed.PublishBid(context.Background(), bid, "alice")
	require.NoError(t, err)

	assert.Equal(t, bid.ItemID.String(), client.channel)

	var got LiveBidMessage
	require.NoError(t, json.Unmarshal(client.message, &got))
	assert.Equal(t, LiveBidMessage{
		ItemID:     bid.ItemID.String(),
		BidID:      bid.ID.String(),
		Amount:     1700,
		Message:    "going once",
		BidderName: "alice",
		PlacedAt:   bid.CreatedAt,
	}, got)
}

func TestRedisBidFeed_PublishError(t *testing.T) {
	feed := NewRedisBidFeed(&fakeRedis{err: errors.New("connection refused")})

	err := feed.PublishBid(context.Background(), &bids.Bid{ItemID: uuid.New()}, "bob")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
