// Package app wires the auction service's repositories and domain components
// for the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/auction-house/pkg/clock"
	pkgdb "github.com/floroz/auction-house/pkg/database"
	"github.com/floroz/auction-house/services/auction-service/internal/adapters/database"
	adapterevents "github.com/floroz/auction-house/services/auction-service/internal/adapters/events"
	"github.com/floroz/auction-house/services/auction-service/internal/config"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/bids"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/settlement"
	"github.com/floroz/auction-house/services/auction-service/internal/reconcile"
	"github.com/floroz/auction-house/services/auction-service/internal/scheduler"
)

type App struct {
	Config *config.Config
	Clock  clock.Clock
	Pool   *pgxpool.Pool
	Redis  *redis.Client

	TxManager  *pkgdb.PostgresTransactionManager
	ItemRepo   *database.PostgresItemRepository
	BidRepo    *database.PostgresBidRepository
	UserRepo   *database.PostgresUserRepository
	OutboxRepo *database.PostgresOutboxRepository

	Engine    *settlement.Engine
	Scheduler *scheduler.Scheduler
	Registry  *items.Registry
	Ledger    *bids.Ledger

	logger *slog.Logger
}

// New connects to Postgres (and Redis when configured) and builds every component
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", pingErr)
	}
	logger.Info("Postgres Connected")

	a := &App{
		Config: cfg,
		Clock:  clock.Real{},
		Pool:   pool,
		logger: logger,
	}

	a.TxManager = pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	a.ItemRepo = database.NewPostgresItemRepository(pool)
	a.BidRepo = database.NewPostgresBidRepository(pool)
	a.UserRepo = database.NewPostgresUserRepository(pool)
	a.OutboxRepo = database.NewPostgresOutboxRepository(pool)

	var feed bids.LiveFeed
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed (live updates may be dropped)", "error", err)
		} else {
			logger.Info("Redis Connected")
		}
		feed = adapterevents.NewRedisBidFeed(a.Redis)
	} else {
		logger.Info("REDIS_ADDR not set, live bid fan-out disabled")
	}

	alerter := adapterevents.NewOutboxAlerter(a.TxManager, a.OutboxRepo)
	a.Engine = settlement.NewEngine(a.TxManager, a.ItemRepo, a.BidRepo, a.UserRepo, a.OutboxRepo, alerter, logger)
	a.Scheduler = scheduler.New(a.Engine, a.Clock, logger)
	a.Registry = items.NewRegistry(a.ItemRepo, a.Scheduler, a.Clock, logger)
	a.Ledger = bids.NewLedger(a.TxManager, a.BidRepo, a.ItemRepo, a.OutboxRepo, feed, a.Clock, logger)

	return a, nil
}

// Scanner builds a reconciliation scanner; pass a nil armer to skip re-arming
func (a *App) Scanner(armer reconcile.Armer) *reconcile.Scanner {
	return reconcile.NewScanner(a.ItemRepo, a.Engine, armer, a.Config.ReconcileConcurrency, a.logger)
}

// Close stops pending timers and releases connections
func (a *App) Close() {
	a.Scheduler.Stop()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}
