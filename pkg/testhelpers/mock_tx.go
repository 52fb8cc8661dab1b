package testhelpers

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// FakeTx is a pgx.Tx stand-in for unit tests. Only Commit and Rollback are
// implemented; any other method panics through the nil embedded interface.
type FakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	CommitErr  error
	committed  bool
	rolledBack bool
}

// Commit records the commit and returns CommitErr
func (t *FakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CommitErr != nil {
		return t.CommitErr
	}
	t.committed = true
	return nil
}

// Rollback records a rollback unless the transaction was already committed
func (t *FakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

// Committed reports whether Commit succeeded
func (t *FakeTx) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// RolledBack reports whether the transaction was rolled back before commit
func (t *FakeTx) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}

// MockTxManager is a testify mock of database.TransactionManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}
