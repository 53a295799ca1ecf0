package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escrow-trade-service/config"
	httpHandler "escrow-trade-service/internal/adapter/http/handler"
	pgStorage "escrow-trade-service/internal/adapter/storage/postgres"
	redisStorage "escrow-trade-service/internal/adapter/storage/redis"
	"escrow-trade-service/internal/collaborator"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/internal/service"
	"escrow-trade-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Escrow Trade Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Apply schema migrations
	if err := pgStorage.Migrate(ctx, cfg.Database.DSN(), log); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	tradeRepo := pgStorage.NewTradeRepo(pool)
	eventRepo := pgStorage.NewTradeEventRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	challengeStore := redisStorage.NewChallengeStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	codeHashSvc := service.NewArgon2CodeHashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize collaborator clients
	httpClient := &http.Client{Timeout: cfg.Collaborators.Timeout}
	secret := cfg.Collaborators.SigningSecret
	adCatalog := collaborator.NewAdCatalogClient(httpClient, cfg.Collaborators.AdCatalogURL, secret, sigSvc, log)
	kycGate := collaborator.NewKYCGateClient(httpClient, cfg.Collaborators.KYCURL, secret, sigSvc, log)
	walletLedger := collaborator.NewWalletLedgerClient(httpClient, cfg.Collaborators.WalletLedgerURL, secret, sigSvc, log)
	notifier := collaborator.NewNotifierClient(httpClient, cfg.Collaborators.NotifierURL, secret, sigSvc, log)
	deliverer := collaborator.NewChallengeDelivererClient(httpClient, cfg.Collaborators.NotifierURL, secret, sigSvc, log)

	// Initialize business services
	tradeSvc := service.NewTradeService(tradeRepo, eventRepo, transactor, adCatalog, kycGate, walletLedger, notifier, encSvc, log)
	releaseSvc := service.NewReleaseService(
		tradeRepo, eventRepo, transactor,
		challengeStore, codeHashSvc, deliverer, walletLedger, notifier,
		cfg.Trade.ChallengeTTL, cfg.Trade.ChallengeAttempts,
		log,
	)

	// Start the payment-window sweeper
	sweeper := service.NewSweeper(tradeSvc, cfg.Trade.SweepInterval, cfg.Trade.SweepBatchSize, log)
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TradeSvc:       tradeSvc,
		ReleaseSvc:     releaseSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
