package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/auction-house/pkg/clock"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/settlement"
)

// Settler is what a fired timer calls
type Settler interface {
	Settle(ctx context.Context, itemID uuid.UUID, now time.Time) (*settlement.Result, error)
}

// Scheduler holds one in-memory settlement timer per item. Timers do not survive
// a restart; reconciliation covers whatever was armed in a previous process.
type Scheduler struct {
	settler Settler
	clock   clock.Clock
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool
}

// New creates a scheduler. Call Stop on shutdown.
func New(settler Settler, clk clock.Clock, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		settler: settler,
		clock:   clk,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// ArmSettlement registers a fire-once settlement for itemID at the given instant.
// It returns false if the item already has a pending timer or the scheduler is stopped.
// A deadline in the past fires immediately.
func (s *Scheduler) ArmSettlement(itemID uuid.UUID, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.timers[itemID]; ok {
		return false
	}

	delay := max(at.Sub(s.clock.Now()), 0)

	s.wg.Add(1)
	s.timers[itemID] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.fire(itemID, at)
	})

	s.logger.Debug("Settlement armed", "item_id", itemID, "at", at, "delay", delay)
	return true
}

// Armed returns the number of timers that have not fired yet
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer and waits for running settlements to return.
// Settlements in flight see a cancelled context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for itemID, timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, itemID)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) fire(itemID uuid.UUID, at time.Time) {
	s.mu.Lock()
	delete(s.timers, itemID)
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	// The runtime timer and the wall clock can disagree by a few microseconds
	now := s.clock.Now()
	if now.Before(at) {
		now = at
	}

	result, err := s.settler.Settle(s.ctx, itemID, now)
	if err != nil {
		var integrityErr *settlement.IntegrityError
		switch {
		case errors.As(err, &integrityErr):
			// Already alerted by the engine; reconciliation retries once the data is fixed
			s.logger.Warn("Scheduled settlement left item pending", "item_id", itemID, "error", err)
		case errors.Is(err, context.Canceled):
			s.logger.Info("Scheduled settlement interrupted by shutdown", "item_id", itemID)
		default:
			s.logger.Error("Scheduled settlement failed", "item_id", itemID, "error", err)
		}
		return
	}

	s.logger.Info("Scheduled settlement completed", "item_id", itemID, "status", result.Status)
}
