// Package main is the entry point for the API server. It wires storage, the gateway
// client, the ledger services and the HTTP surface, then serves until interrupted.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ledgerpay/internal/config"
	"ledgerpay/internal/handlers"
	"ledgerpay/internal/messaging/rabbitmq"
	"ledgerpay/internal/metrics"
	"ledgerpay/internal/middleware"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/repositories/cache"
	"ledgerpay/internal/repositories/memory"
	"ledgerpay/internal/routes"
	"ledgerpay/internal/services/auth"
	"ledgerpay/internal/services/funding"
	"ledgerpay/internal/services/gateway"
	"ledgerpay/internal/services/ledger"
	"ledgerpay/internal/services/limits"
	"ledgerpay/internal/services/notification"
	"ledgerpay/internal/services/onboarding"
	"ledgerpay/internal/services/sweeper"
	"ledgerpay/internal/services/tier"
	"ledgerpay/internal/services/transfer"
	"ledgerpay/internal/services/wallet"
	"ledgerpay/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const version = "1.0.0"

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	checks := map[string]handlers.Pinger{}

	var store repositories.Store
	switch cfg.DBDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.New()
	default:
		db, err := repositories.InitDB(cfg)
		if err != nil {
			logger.Error("failed to initialise database", "error", err)
			os.Exit(1)
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Error("failed to get database instance", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("failed to close database connection", "error", err)
			}
		}()
		checks["database"] = sqlDB.PingContext
		store = repositories.NewStore(db)
		logger.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)
	}

	// Redis is optional. Without it caches stay in process and the per-user
	// transfer limit is off.
	var (
		shared      cache.Cache = cache.NewMemoryCache()
		tokens      gateway.TokenCache
		rateLimiter middleware.RateLimiter
	)
	client := cache.NewRedisClient(&cache.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cacheService := cache.NewCacheService(client, 10*time.Minute)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cacheService.HealthCheck(pingCtx); err != nil {
		logger.Warn("redis unavailable; using in-process caches", "error", err)
		_ = cacheService.Close()
	} else {
		defer func() {
			if err := cacheService.Close(); err != nil {
				logger.Warn("failed to close redis connection", "error", err)
			}
		}()
		shared = cacheService
		tokens = gateway.NewSharedTokenCache(cacheService, logger.With("component", "gateway"))
		rateLimiter = middleware.NewRedisRateLimiter(client, "ledgerpay:ratelimit")
		checks["redis"] = cacheService.HealthCheck
		logger.Info("connected to redis", "host", cfg.RedisHost)
	}
	cancelPing()

	var notifier notification.Notifier = notification.Nop{}
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable; notifications are dropped", "error", err)
			notifier = notification.NewService(&rabbitmq.EventProducerFallback{Logger: logger}, logger)
		} else {
			defer producer.Close()
			notifier = notification.NewService(producer, logger)
		}
	}

	gw := gateway.NewClient(gateway.Options{
		BaseURL:       cfg.GatewayBaseURL,
		APIKey:        cfg.GatewayAPIKey,
		SecretKey:     cfg.GatewaySecretKey,
		ContractCode:  cfg.GatewayContractCode,
		SourceAccount: cfg.GatewaySourceAccount,
		RedirectURL:   cfg.GatewayRedirectURL,
		Timeout:       cfg.GatewayTimeout,
		Tokens:        tokens,
		Banks:         shared,
		Logger:        logger.With("component", "gateway"),
	})

	collector := metrics.NewCollector()
	tracker := limits.NewTracker(cfg.Location(), nil)

	jwtTokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("invalid token settings", "error", err)
		os.Exit(1)
	}

	wallets := wallet.NewService(store, tracker, shared, collector, logger)
	onboard := onboarding.NewService(store, gw, tracker, logger)
	authService := auth.NewService(store, onboard, jwtTokens, logger)
	fundingService := funding.NewService(store, gw, tracker, logger)
	engine := transfer.NewEngine(transfer.Deps{
		Store:         store,
		Gateway:       gw,
		Tracker:       tracker,
		Notifier:      notifier,
		Metrics:       collector,
		Wallets:       wallets,
		Logger:        logger.With("component", "transfer"),
		MinimumAmount: cfg.MinimumTransfer(),
	})
	reconciler := webhook.NewReconciler(store, tracker, notifier, collector, wallets, logger.With("component", "webhook"))
	upgrades := tier.NewService(store, notifier, logger).WithWalletCache(wallets)

	sweep := sweeper.New(store, gw, reconciler, onboard, collector, logger.With("component", "sweeper"), sweeper.Options{
		PendingAfter:  cfg.SweepPendingAfter,
		FundingExpiry: cfg.FundingExpiry,
	})
	scheduler := sweeper.NewScheduler(sweep, logger)
	if err := scheduler.Start(cfg.SweepSchedule); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		AppName:      "ledgerpay",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: !strings.Contains(cfg.CORSOrigins, "*"),
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService, logger),
		Wallet:      handlers.NewWalletHandler(wallets, fundingService, logger),
		Transfer:    handlers.NewTransferHandler(engine, logger),
		Transaction: handlers.NewTransactionHandler(ledger.NewService(store), logger),
		KYC:         handlers.NewKYCHandler(upgrades, logger),
		Admin:       handlers.NewAdminHandler(upgrades, logger),
		Webhook:     handlers.NewWebhookHandler(reconciler, logger),
		Health:      handlers.NewHealthHandler(version, checks),
		Metrics:     collector.Handler(),
	}, routes.Options{
		Auth:               middleware.NewAuthMiddleware(jwtTokens, store, logger),
		WebhookSecret:      gw.SecretKey(),
		RateLimiter:        rateLimiter,
		TransferRateLimit:  cfg.TransferRateLimit,
		TransferRateWindow: cfg.TransferRateWindow,
		Logger:             logger,
	})

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(30 * time.Second):
		logger.Warn("sweep still running at shutdown")
	}
}
