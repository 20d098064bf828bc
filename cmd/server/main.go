// Package main is the entry point for the coincart server.
//
// The application tracks a small crypto market, values user portfolios and
// executes simulated cart checkouts against live prices. State is split
// across three SQLite databases:
//   - portfolio.db: current state (carts, positions)
//   - ledger.db: immutable trade history
//   - cache.db: ephemeral market data
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coincart/coincart/internal/clientdata"
	"github.com/coincart/coincart/internal/clients/coingecko"
	"github.com/coincart/coincart/internal/config"
	"github.com/coincart/coincart/internal/database"
	"github.com/coincart/coincart/internal/events"
	"github.com/coincart/coincart/internal/modules/assets"
	"github.com/coincart/coincart/internal/modules/cart"
	"github.com/coincart/coincart/internal/modules/portfolio"
	"github.com/coincart/coincart/internal/modules/trading"
	"github.com/coincart/coincart/internal/reliability"
	"github.com/coincart/coincart/internal/scheduler"
	"github.com/coincart/coincart/internal/server"
	"github.com/coincart/coincart/internal/stream"
	"github.com/coincart/coincart/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting coincart")

	// Databases
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{portfolioDB, ledgerDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to run migrations")
		}
	}

	// Shared infrastructure
	bus := events.NewBus(log)
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	market := coingecko.NewClient(cfg.UpstreamURL, cfg.PriceTimeout, log)
	oracle := assets.NewOracle(cacheRepo, market, bus, cfg.QuoteTTL, log)

	// Domain services
	cartRepo := cart.NewRepository(portfolioDB.Conn())
	cartService := cart.NewService(cartRepo, oracle, bus, log)

	positionRepo := portfolio.NewPositionRepository(portfolioDB.Conn())
	portfolioService := portfolio.NewService(positionRepo, oracle, log)

	ledgerRepo := trading.NewTransactionRepository(ledgerDB.Conn())
	checkoutService := trading.NewCheckoutService(
		portfolioDB.Conn(),
		cartRepo,
		positionRepo,
		ledgerRepo,
		oracle,
		bus,
		cfg.CheckoutPolicy,
		log,
	)

	// Live price stream
	hub := stream.NewHub(bus, cfg.DataDir, log)
	hub.Start()

	feed := stream.NewFeed(cfg.FeedURL, oracle, bus, log)
	if err := feed.Start(); err != nil {
		log.Error().Err(err).Msg("Price feed failed to start, continuing with polling only")
	}

	// Background jobs
	sched := scheduler.New(log)

	priceSync := scheduler.NewPriceSyncJob(oracle, 30*time.Second, log)
	if err := sched.AddJob("@every 30s", priceSync); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price sync job")
	}

	cacheCleanup := scheduler.NewCacheCleanupJob(cacheRepo, cacheDB, log)
	if err := sched.AddJob("@hourly", cacheCleanup); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	if cfg.BackupEnabled() {
		s3Client, err := reliability.NewS3Client(
			cfg.Backup.Endpoint,
			cfg.Backup.AccessKey,
			cfg.Backup.SecretKey,
			cfg.Backup.Bucket,
			log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup client")
		}

		backupService := reliability.NewBackupService(
			map[string]*database.DB{
				"portfolio": portfolioDB,
				"ledger":    ledgerDB,
				"cache":     cacheDB,
			},
			s3Client,
			cfg.DataDir,
			cfg.Backup.Keep,
			log,
		)

		// Daily at 03:00
		if err := sched.AddJob("0 0 3 * * *", scheduler.NewBackupJob(backupService)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("Offsite backups disabled, set BACKUP_S3_ENDPOINT and BACKUP_S3_BUCKET to enable")
	}

	sched.Start()

	// Warm the quote cache so the first request does not wait on upstream
	go func() {
		if err := sched.RunNow(priceSync); err != nil {
			log.Warn().Err(err).Msg("Initial quote sync failed")
		}
	}()

	// HTTP server
	srv := server.New(server.Config{
		Log:              log,
		Config:           cfg,
		PortfolioDB:      portfolioDB,
		LedgerDB:         ledgerDB,
		CacheDB:          cacheDB,
		Oracle:           oracle,
		CartService:      cartService,
		CheckoutService:  checkoutService,
		PortfolioService: portfolioService,
		Hub:              hub,
		Feed:             feed,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := feed.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping price feed")
	}
	hub.Stop()
	sched.Stop()

	log.Info().Msg("Server stopped")
}
