package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	pkgdb "github.com/floroz/auction-house/pkg/database"
	pkgevents "github.com/floroz/auction-house/pkg/events"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/settlement"
)

// OutboxWriter stores an event in the caller's transaction
type OutboxWriter interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error
}

// OutboxAlerter implements settlement.Alerter by writing a settlement.failed event.
// It uses its own transaction because the settlement transaction has been rolled back.
type OutboxAlerter struct {
	txManager  pkgdb.TransactionManager
	outboxRepo OutboxWriter
}

// NewOutboxAlerter creates a new alerter
func NewOutboxAlerter(txManager pkgdb.TransactionManager, outboxRepo OutboxWriter) *OutboxAlerter {
	return &OutboxAlerter{
		txManager:  txManager,
		outboxRepo: outboxRepo,
	}
}

// SettlementFailed records the failure for operators downstream of the broker
func (a *OutboxAlerter) SettlementFailed(ctx context.Context, failure settlement.Failure) error {
	msg, err := structpb.NewStruct(map[string]any{
		"item_id":     failure.ItemID.String(),
		"winner_id":   failure.WinnerID.String(),
		"amount":      failure.Amount,
		"reason":      failure.Reason,
		"occurred_at": failure.OccurredAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to build alert payload: %w", err)
	}
	payload, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	tx, err := a.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	event := pkgevents.NewOutboxEvent(pkgevents.EventTypeSettlementFailed, payload, failure.OccurredAt)
	if err := a.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save alert event: %w", err)
	}

	return tx.Commit(ctx)
}
