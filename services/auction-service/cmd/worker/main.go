package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	adapterevents "github.com/floroz/auction-house/services/auction-service/internal/adapters/events"
	"github.com/floroz/auction-house/services/auction-service/internal/app"
	"github.com/floroz/auction-house/services/auction-service/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	amqpConn, err := amqp091.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	producer, err := adapterevents.NewAuctionEventsProducer(a.Pool, amqpConn, adapterevents.ProducerConfig{
		BatchSize:   cfg.OutboxBatchSize,
		Interval:    cfg.OutboxInterval,
		LockTimeout: cfg.LockTimeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to create events producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return producer.Run(gctx)
	})

	if cfg.ReconcileInterval > 0 {
		// Backstop for settlements that failed transiently while the API was up
		scanner := a.Scanner(nil)
		g.Go(func() error {
			logger.Info("Starting reconciliation sweep", "interval", cfg.ReconcileInterval)
			return scanner.RunPeriodic(gctx, a.Clock, cfg.ReconcileInterval)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
