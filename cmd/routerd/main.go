package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/p0mvn/swaprouter/internal/cache"
	"github.com/p0mvn/swaprouter/internal/config"
	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/router"
	"github.com/p0mvn/swaprouter/internal/server"
	"github.com/p0mvn/swaprouter/internal/storage"
	"github.com/p0mvn/swaprouter/internal/store"
	"github.com/p0mvn/swaprouter/internal/stream"
	"github.com/p0mvn/swaprouter/internal/venue"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the router daemon
// It serves the HTTP API and consumes venue trade results until shut down
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize Redis client backing the stores and the settlement cache
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0, // Use default database for main application
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	ownerStore, err := store.NewOwnerStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create owner store")
	}
	// Seed the owner on first boot; an existing owner wins
	if err := ownerStore.Init(ctx, cfg.Owner); err != nil {
		logger.WithError(err).Fatal("failed to init owner")
	}

	routeStore, err := store.NewRouteStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create route store")
	}

	pendingStore, err := store.NewPendingStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create pending store")
	}

	// Settlement audit cache and pub/sub fanout
	settlementCache := cache.NewRedisCacheFromClient(rclient, logger)

	// Venue client: liquidity, TWAP, submission, transfers, result polling
	venueClient := venue.NewClient(cfg.VenueBaseURL, cfg.VenueAPIKey)

	// Optional ClickHouse settlement history
	var history storage.SettlementStore
	var chStore *cache.ClickHouseStore
	if cfg.ClickHouseEnabled {
		chStore, err = cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		history = chStore
		defer func() {
			_ = chStore.Close()
		}()
	}

	// TWAP source for price-impact slippage: the venue by default, the
	// mirrored ClickHouse price history when configured
	var twapSource router.TwapSource = venueClient
	if cfg.TwapSource == "clickhouse" {
		twapSource = chStore
	}

	orchestrator := router.NewOrchestrator(router.OrchestratorConfig{
		Owner:     ownerStore,
		Routes:    routeStore,
		Pending:   pendingStore,
		Validator: router.NewValidator(venueClient),
		Slippage:  router.NewSlippageCalculator(routeStore, twapSource),
		Venue:     venueClient,
		Transfers: venueClient,
		Cache:     settlementCache,
		History:   history,
		Identity:  cfg.RouterSender,
		Logger:    logger,
	})

	// Result provider: redis pub/sub when the venue bridge publishes there,
	// HTTP polling otherwise
	var provider storage.ResultProvider
	switch cfg.ResultProvider {
	case "poll":
		provider = stream.NewVenuePoller(stream.VenuePollerConfig{
			Client:       venueClient,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
	default:
		provider = stream.NewPubSubProvider(cache.NewSubscriber(rclient, logger), logger)
	}

	// Consume trade results and settle pending swaps
	go func() {
		handler := func(result *models.TradeResult) {
			if _, err := orchestrator.OnTradeResult(ctx, result); err != nil {
				logger.WithError(err).WithField("correlation_id", result.CorrelationID).
					Warn("trade result not settled")
			}
		}
		if err := provider.Start(ctx, handler); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("result provider stopped")
		}
	}()

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Router:  orchestrator,
		Cache:   settlementCache,
		Pending: pendingStore,
		DevMode: cfg.DevMode,
		Logger:  logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Cancel context to stop ongoing operations
		_ = provider.Stop()                    // Stop consuming trade results
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	logger.WithField("addr", cfg.APIAddr).Info("router starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("router failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
