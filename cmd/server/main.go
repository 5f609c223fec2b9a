package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/soltrack/service/config"
	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/metrics"
	natspkg "github.com/brojonat/soltrack/service/nats"
	"github.com/brojonat/soltrack/service/poller"
	"github.com/brojonat/soltrack/service/server"
	"github.com/brojonat/soltrack/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"scheduler", cfg.Scheduler,
		"log_level", cfg.LogLevel,
	)

	account, err := solanago.PublicKeyFromBase58(cfg.TrackedAccount)
	if err != nil {
		logger.Error("invalid tracked account", "account", cfg.TrackedAccount, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil)

	// The read API and the poller never share connections.
	apiPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBAPIMaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "pool", "api", "error", err)
		os.Exit(1)
	}
	defer apiPool.Close()

	pollerPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBPollerMaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "pool", "poller", "error", err)
		os.Exit(1)
	}
	defer pollerPool.Close()
	logger.Info("connected to database",
		"api_max_conns", cfg.DBAPIMaxConns,
		"poller_max_conns", cfg.DBPollerMaxConns,
	)

	if err := db.Migrate(ctx, apiPool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	apiStore := db.NewStore(apiPool, metricsCollector)
	pollerStore := db.NewStore(pollerPool, metricsCollector)

	var (
		publisher  natspkg.Publisher
		subscriber server.TransferSubscriber
	)
	if cfg.NATSURL != "" {
		p, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p

		sse, err := server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		subscriber = sse
	} else {
		logger.Info("NATS_URL not set, transfer events disabled")
	}

	var (
		status    server.PollerStatus
		scheduler *poller.Scheduler
	)
	if cfg.Scheduler == config.SchedulerLocal {
		ledger := solana.NewClient(
			solana.NewRPCClient(cfg.SolanaRPCURL),
			solana.Options{Commitment: cfg.RPCCommitment, PageSize: cfg.SignaturePageSize},
			metricsCollector,
			logger,
		)
		p := poller.New(poller.Config{
			Account:   account,
			Ledger:    ledger,
			Store:     pollerStore,
			Publisher: publisher,
			Metrics:   metricsCollector,
			Logger:    logger,
		})
		status = p
		scheduler = poller.NewScheduler(p, cfg.PollInterval, logger)
		scheduler.Start(ctx)
	} else {
		logger.Info("polling delegated to the temporal worker", "task_queue", cfg.TemporalTaskQueue)
	}

	httpServer := server.New(cfg.ServerAddr, apiStore, status, subscriber, metricsCollector, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		exitCode = 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop polling first: cancel the cycle, then wait for it to return.
	cancel()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
			logger.Info("poll scheduler stopped")
		case <-shutdownCtx.Done():
			logger.Warn("timed out waiting for poll cycle to finish")
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", "error", err)
		exitCode = 1
	}

	logger.Info("server shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
