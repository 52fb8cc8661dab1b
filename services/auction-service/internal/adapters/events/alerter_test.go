package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	pkgevents "github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/pkg/testhelpers"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/settlement"
)

type mockOutboxWriter struct {
	mock.Mock
}

func (m *mockOutboxWriter) SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func TestOutboxAlerter_SettlementFailed(t *testing.T) {
	tx := &testhelpers.FakeTx{}
	txm := &testhelpers.MockTxManager{}
	txm.On("BeginTx", mock.Anything).Return(tx, nil)
	writer := &mockOutboxWriter{}

	failure := settlement.Failure{
		ItemID:     uuid.New(),
		WinnerID:   uuid.New(),
		Amount:     2000,
		Reason:     settlement.ErrWinnerNotFound.Error(),
		OccurredAt: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	var saved *pkgevents.OutboxEvent
	writer.On("SaveEvent", mock.Anything, tx, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*pkgevents.OutboxEvent) }).
		Return(nil)

	err := NewOutboxAlerter(txm, writer).SettlementFailed(context.Background(), failure)

	require.NoError(t, err)
	assert.True(t, tx.Committed())
	require.NotNil(t, saved)
	assert.Equal(t, pkgevents.EventTypeSettlementFailed, saved.EventType)
	assert.Equal(t, failure.OccurredAt, saved.CreatedAt)

	var payload structpb.Struct
	require.NoError(t, proto.Unmarshal(saved.Payload, &payload))
	assert.Equal(t, failure.ItemID.String(), payload.GetFields()["item_id"].GetStringValue())
	assert.Equal(t, failure.WinnerID.String(), payload.GetFields()["winner_id"].GetStringValue())
	assert.Equal(t, float64(2000), payload.GetFields()["amount"].GetNumberValue())
}

func TestOutboxAlerter_SaveFailureRollsBack(t *testing.T) {
	tx := &testhelpers.FakeTx{}
	txm := &testhelpers.MockTxManager{}
	txm.On("BeginTx", mock.Anything).Return(tx, nil)
	writer := &mockOutboxWriter{}
	writer.On("SaveEvent", mock.Anything, tx, mock.Anything).Return(errors.New("db down"))

	err := NewOutboxAlerter(txm, writer).SettlementFailed(context.Background(), settlement.Failure{ItemID: uuid.New()})

	require.Error(t, err)
	assert.False(t, tx.Committed())
	assert.True(t, tx.RolledBack())
}
