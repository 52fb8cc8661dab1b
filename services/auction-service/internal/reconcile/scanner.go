package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/auction-house/pkg/clock"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/settlement"
)

// ItemSource lists the items a sweep looks at
type ItemSource interface {
	ListExpiredUnsettled(ctx context.Context, now time.Time) ([]*items.Item, error)
	ListActiveItems(ctx context.Context) ([]*items.Item, error)
}

// Settler settles a single item
type Settler interface {
	Settle(ctx context.Context, itemID uuid.UUID, now time.Time) (*settlement.Result, error)
}

// Armer re-registers timers for items that are still open
type Armer interface {
	ArmSettlement(itemID uuid.UUID, at time.Time) bool
}

// Report summarizes one sweep
type Report struct {
	Expired        int
	Settled        int
	NoBids         int
	AlreadySettled int
	Failed         int
	Rearmed        int
}

func (r *Report) record(status settlement.Status) {
	switch status {
	case settlement.StatusSettled:
		r.Settled++
	case settlement.StatusNoBids:
		r.NoBids++
	case settlement.StatusAlreadySettled:
		r.AlreadySettled++
	}
}

// Scanner settles every item whose deadline passed without a recorded winner.
// It is safe to run while timers are still firing: settlement is idempotent.
type Scanner struct {
	items       ItemSource
	settler     Settler
	armer       Armer
	concurrency int
	logger      *slog.Logger
}

// NewScanner creates a reconciliation scanner. armer may be nil, in which case
// open items are left alone.
func NewScanner(source ItemSource, settler Settler, armer Armer, concurrency int, logger *slog.Logger) *Scanner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scanner{
		items:       source,
		settler:     settler,
		armer:       armer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run performs one sweep at now. Every expired item is attempted even if some fail;
// the failures are joined into the returned error.
func (s *Scanner) Run(ctx context.Context, now time.Time) (Report, error) {
	var report Report

	expired, err := s.items.ListExpiredUnsettled(ctx, now)
	if err != nil {
		return report, fmt.Errorf("failed to list expired items: %w", err)
	}
	report.Expired = len(expired)

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, item := range expired {
		g.Go(func() error {
			result, err := s.settler.Settle(gctx, item.ID, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				errs = append(errs, fmt.Errorf("item %s: %w", item.ID, err))
				return nil
			}
			report.record(result.Status)
			return nil
		})
	}
	_ = g.Wait()

	if s.armer != nil {
		rearmed, err := s.rearm(ctx, now)
		if err != nil {
			errs = append(errs, err)
		}
		report.Rearmed = rearmed
	}

	s.logger.Info("Reconciliation finished",
		"expired", report.Expired,
		"settled", report.Settled,
		"no_bids", report.NoBids,
		"already_settled", report.AlreadySettled,
		"failed", report.Failed,
		"rearmed", report.Rearmed,
	)

	return report, errors.Join(errs...)
}

// rearm restores timers for open items; the previous process's timers died with it
func (s *Scanner) rearm(ctx context.Context, now time.Time) (int, error) {
	active, err := s.items.ListActiveItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active items: %w", err)
	}

	count := 0
	for _, item := range active {
		if !item.AcceptsBidsAt(now) {
			continue
		}
		if s.armer.ArmSettlement(item.ID, item.EndAt) {
			count++
		}
	}
	return count, nil
}

// RunPeriodic repeats Run every interval until ctx is cancelled
func (s *Scanner) RunPeriodic(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx, clk.Now()); err != nil {
				s.logger.Error("Reconciliation sweep had failures", "error", err)
			}
		}
	}
}
