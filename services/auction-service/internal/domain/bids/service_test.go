package bids

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/auction-house/pkg/clock"
	"github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/pkg/testhelpers"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
)

type mockBidRepo struct {
	mock.Mock
}

func (m *mockBidRepo) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *mockBidRepo) GetBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

type mockItemRepo struct {
	mock.Mock
}

func (m *mockItemRepo) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error) {
	args := m.Called(ctx, tx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.Item), args.Error(1)
}

func (m *mockItemRepo) UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error {
	args := m.Called(ctx, tx, itemID, amount)
	return args.Error(0)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) PublishBid(ctx context.Context, bid *Bid, bidderName string) error {
	args := m.Called(ctx, bid, bidderName)
	return args.Error(0)
}

type ledgerFixture struct {
	tx     *testhelpers.FakeTx
	txm    *testhelpers.MockTxManager
	bids   *mockBidRepo
	items  *mockItemRepo
	outbox *mockOutboxRepo
	feed   *mockFeed
	clock  *clock.Manual
	ledger *Ledger
}

func newLedgerFixture(now time.Time) *ledgerFixture {
	f := &ledgerFixture{
		tx:     &testhelpers.FakeTx{},
		txm:    &testhelpers.MockTxManager{},
		bids:   &mockBidRepo{},
		items:  &mockItemRepo{},
		outbox: &mockOutboxRepo{},
		feed:   &mockFeed{},
		clock:  clock.NewManual(now),
	}
	f.txm.On("BeginTx", mock.Anything).Return(f.tx, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.ledger = NewLedger(f.txm, f.bids, f.items, f.outbox, f.feed, f.clock, logger)
	return f
}

func openItem(created time.Time, startPrice, highest int64) *items.Item {
	return &items.Item{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		Name:              "Vintage Guitar",
		StartPrice:        startPrice,
		CurrentHighestBid: highest,
		CreatedAt:         created,
		EndAt:             items.DeadlineFor(created),
	}
}

// TestValidateBid tests the ladder rules and their precedence
func TestValidateBid(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	winner := uuid.New()

	settled := openItem(created, 1000, 2000)
	settled.WinnerID = &winner

	tests := []struct {
		name   string
		item   *items.Item
		amount int64
		now    time.Time
		want   RejectReason
	}{
		{
			name:   "valid first bid above start price",
			item:   openItem(created, 1000, 0),
			amount: 1500,
			now:    created.Add(time.Hour),
			want:   "",
		},
		{
			name:   "valid bid above current highest",
			item:   openItem(created, 1000, 1500),
			amount: 2000,
			now:    created.Add(23 * time.Hour),
			want:   "",
		},
		{
			name:   "settled wins over every other rule",
			item:   settled,
			amount: 1,
			now:    created.Add(48 * time.Hour),
			want:   RejectAlreadySettled,
		},
		{
			name:   "bid exactly at deadline",
			item:   openItem(created, 1000, 0),
			amount: 5000,
			now:    created.Add(24 * time.Hour),
			want:   RejectDeadlinePassed,
		},
		{
			name:   "deadline checked before price",
			item:   openItem(created, 1000, 0),
			amount: 10,
			now:    created.Add(25 * time.Hour),
			want:   RejectDeadlinePassed,
		},
		{
			name:   "equal to start price",
			item:   openItem(created, 1000, 0),
			amount: 1000,
			now:    created.Add(time.Hour),
			want:   RejectBelowStartingPrice,
		},
		{
			name:   "below start price even if below ladder too",
			item:   openItem(created, 1000, 1500),
			amount: 900,
			now:    created.Add(time.Hour),
			want:   RejectBelowStartingPrice,
		},
		{
			name:   "equal to current highest",
			item:   openItem(created, 1000, 1500),
			amount: 1500,
			now:    created.Add(time.Hour),
			want:   RejectBelowLadder,
		},
		{
			name:   "between start price and current highest",
			item:   openItem(created, 1000, 1500),
			amount: 1400,
			now:    created.Add(2 * time.Hour),
			want:   RejectBelowLadder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateBid(tt.item, tt.amount, tt.now))
		})
	}
}

func TestLedger_SubmitBid_Accepted(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newLedgerFixture(created.Add(time.Hour))
	item := openItem(created, 1000, 0)
	bidderID := uuid.New()

	f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
	f.bids.On("SaveBid", mock.Anything, f.tx, mock.AnythingOfType("*bids.Bid")).Return(nil)
	f.items.On("UpdateHighestBid", mock.Anything, f.tx, item.ID, int64(1500)).Return(nil)
	f.outbox.On("SaveEvent", mock.Anything, f.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
		return e.EventType == events.EventTypeBidPlaced && e.Status == events.OutboxStatusPending
	})).Return(nil)
	f.feed.On("PublishBid", mock.Anything, mock.AnythingOfType("*bids.Bid"), "alice").Return(nil)

	outcome, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{
		ItemID:     item.ID,
		BidderID:   bidderID,
		BidderName: "alice",
		Amount:     1500,
		Message:    "first!",
	})

	require.NoError(t, err)
	require.True(t, outcome.Accepted())
	assert.Empty(t, outcome.Reason)
	assert.Equal(t, item.ID, outcome.Bid.ItemID)
	assert.Equal(t, bidderID, outcome.Bid.BidderID)
	assert.Equal(t, int64(1500), outcome.Bid.Amount)
	assert.Equal(t, "first!", outcome.Bid.Message)
	assert.Equal(t, created.Add(time.Hour), outcome.Bid.CreatedAt)
	assert.True(t, f.tx.Committed())

	f.items.AssertExpectations(t)
	f.bids.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
	f.feed.AssertExpectations(t)
}

func TestLedger_SubmitBid_Rejections(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		now    time.Time
		item   *items.Item
		amount int64
		want   RejectReason
	}{
		{name: "below ladder", now: created.Add(2 * time.Hour), item: openItem(created, 1000, 1500), amount: 1400, want: RejectBelowLadder},
		{name: "deadline passed", now: created.Add(24 * time.Hour), item: openItem(created, 1000, 0), amount: 1500, want: RejectDeadlinePassed},
		{name: "below start", now: created.Add(time.Hour), item: openItem(created, 1000, 0), amount: 999, want: RejectBelowStartingPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(tt.now)
			f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, tt.item.ID).Return(tt.item, nil)

			outcome, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{
				ItemID:   tt.item.ID,
				BidderID: uuid.New(),
				Amount:   tt.amount,
			})

			require.NoError(t, err)
			assert.False(t, outcome.Accepted())
			assert.Equal(t, tt.want, outcome.Reason)
			assert.False(t, f.tx.Committed())
			assert.True(t, f.tx.RolledBack())
			f.bids.AssertNotCalled(t, "SaveBid", mock.Anything, mock.Anything, mock.Anything)
			f.outbox.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
			f.feed.AssertNotCalled(t, "PublishBid", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLedger_SubmitBid_ItemNotFound(t *testing.T) {
	f := newLedgerFixture(time.Now())
	itemID := uuid.New()
	f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, itemID).
		Return(nil, errors.Join(items.ErrItemNotFound, errors.New("no rows")))

	outcome, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{ItemID: itemID, BidderID: uuid.New(), Amount: 100})

	require.NoError(t, err)
	assert.Equal(t, RejectItemNotFound, outcome.Reason)
}

func TestLedger_SubmitBid_StorageFailureIsAnError(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newLedgerFixture(created.Add(time.Hour))
	item := openItem(created, 1000, 0)
	f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
	f.bids.On("SaveBid", mock.Anything, f.tx, mock.Anything).Return(errors.New("disk full"))

	outcome, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{ItemID: item.ID, BidderID: uuid.New(), Amount: 1500})

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Contains(t, err.Error(), "failed to save bid")
	assert.True(t, f.tx.RolledBack())
	f.feed.AssertNotCalled(t, "PublishBid", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedger_SubmitBid_CommitFailureSkipsLiveFeed(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newLedgerFixture(created.Add(time.Hour))
	f.tx.CommitErr = errors.New("serialization failure")
	item := openItem(created, 1000, 0)
	f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
	f.bids.On("SaveBid", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.items.On("UpdateHighestBid", mock.Anything, f.tx, item.ID, int64(1500)).Return(nil)
	f.outbox.On("SaveEvent", mock.Anything, f.tx, mock.Anything).Return(nil)

	_, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{ItemID: item.ID, BidderID: uuid.New(), Amount: 1500})

	require.Error(t, err)
	f.feed.AssertNotCalled(t, "PublishBid", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedger_SubmitBid_LiveFeedFailureKeepsBid(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newLedgerFixture(created.Add(time.Hour))
	item := openItem(created, 1000, 0)
	f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
	f.bids.On("SaveBid", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.items.On("UpdateHighestBid", mock.Anything, f.tx, item.ID, int64(1500)).Return(nil)
	f.outbox.On("SaveEvent", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.feed.On("PublishBid", mock.Anything, mock.Anything, "bob").Return(errors.New("redis down"))

	outcome, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{
		ItemID:     item.ID,
		BidderID:   uuid.New(),
		BidderName: "bob",
		Amount:     1500,
	})

	require.NoError(t, err)
	assert.True(t, outcome.Accepted())
	assert.True(t, f.tx.Committed())
}

func TestLedger_SubmitBid_NilFeed(t *testing.T) {
	created := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newLedgerFixture(created.Add(time.Hour))
	f.ledger.feed = nil
	item := openItem(created, 1000, 0)
	f.items.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
	f.bids.On("SaveBid", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.items.On("UpdateHighestBid", mock.Anything, f.tx, item.ID, int64(1500)).Return(nil)
	f.outbox.On("SaveEvent", mock.Anything, f.tx, mock.Anything).Return(nil)

	outcome, err := f.ledger.SubmitBid(context.Background(), PlaceBidCommand{ItemID: item.ID, BidderID: uuid.New(), Amount: 1500})

	require.NoError(t, err)
	assert.True(t, outcome.Accepted())
}

func TestLedger_BidHistory(t *testing.T) {
	f := newLedgerFixture(time.Now())
	itemID := uuid.New()
	history := []*Bid{{ItemID: itemID, Amount: 2000}, {ItemID: itemID, Amount: 1500}}
	f.bids.On("GetBidsByItemID", mock.Anything, itemID).Return(history, nil)

	got, err := f.ledger.BidHistory(context.Background(), itemID)

	require.NoError(t, err)
	assert.Equal(t, history, got)
}

func TestBidPlacedPayload(t *testing.T) {
	bid := &Bid{
		ID:        uuid.New(),
		ItemID:    uuid.New(),
		BidderID:  uuid.New(),
		Amount:    2000,
		Message:   "mine",
		CreatedAt: time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC),
	}

	payload, err := bidPlacedPayload(bid)
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	fields := decoded.GetFields()
	assert.Equal(t, bid.ItemID.String(), fields["item_id"].GetStringValue())
	assert.Equal(t, float64(2000), fields["amount"].GetNumberValue())
	assert.Equal(t, "mine", fields["message"].GetStringValue())
}
