package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/floroz/auction-house/pkg/auth"
	"github.com/floroz/auction-house/services/auction-service/internal/adapters/api"
	adapterevents "github.com/floroz/auction-house/services/auction-service/internal/adapters/events"
	"github.com/floroz/auction-house/services/auction-service/internal/app"
	"github.com/floroz/auction-house/services/auction-service/internal/config"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AuthPublicKeyPath == "" {
		logger.Error("AUTH_PUBLIC_KEY_PATH is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Initialize repositories and domain components
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// 2. Token verification
	publicKeyPEM, err := os.ReadFile(cfg.AuthPublicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "path", cfg.AuthPublicKeyPath, "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKeyPEM, cfg.AuthIssuer)
	if err != nil {
		logger.Error("Failed to create token verifier", "error", err)
		os.Exit(1)
	}

	// 3. Recover settlements whose timers died with the previous process, and
	// re-arm the open ones. This must finish before any bid is accepted.
	report, err := a.Scanner(a.Scheduler).Run(ctx, a.Clock.Now())
	if err != nil {
		// Items that failed stay pending; the worker sweep retries them
		logger.Error("Startup reconciliation had failures", "error", err, "failed", report.Failed)
	}

	// 4. Outbox relay (optional here, the worker also relays)
	if cfg.RabbitMQURL != "" {
		amqpConn, dialErr := amqp091.Dial(cfg.RabbitMQURL)
		if dialErr != nil {
			logger.Error("Failed to connect to RabbitMQ", "error", dialErr)
			os.Exit(1)
		}
		defer amqpConn.Close()
		logger.Info("RabbitMQ Connected")

		producer, prodErr := adapterevents.NewAuctionEventsProducer(a.Pool, amqpConn, adapterevents.ProducerConfig{
			BatchSize:   cfg.OutboxBatchSize,
			Interval:    cfg.OutboxInterval,
			LockTimeout: cfg.LockTimeout,
		}, logger)
		if prodErr != nil {
			logger.Error("Failed to create events producer", "error", prodErr)
			os.Exit(1)
		}
		defer producer.Close()

		go func() {
			logger.Info("Starting Outbox Relay...")
			if runErr := producer.Run(ctx); runErr != nil {
				logger.Error("Outbox Relay stopped", "error", runErr)
			}
		}()
	} else {
		logger.Warn("RABBITMQ_URL not set, outbox relay disabled in this process")
	}

	// 5. API handler (ConnectRPC)
	handler := api.NewAuctionServiceHandler(a.Registry, a.Ledger, a.Clock)
	path, h := handler.Routes(auth.NewAuthInterceptor(signer))

	mux := http.NewServeMux()
	mux.Handle(path, h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("Server shutdown failed", "error", shutdownErr)
		}
	}()

	logger.Info("Starting Auction Service API", "addr", cfg.HTTPAddr, "armed", a.Scheduler.Armed())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Auction Service API stopped")
}
