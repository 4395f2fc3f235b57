// Package main is the entry point for the gateway process.
// It initializes all dependencies, starts the event pipeline
// (chain poller, webhook worker, renewal scheduler) and the ops
// HTTP server, and shuts everything down deliberately on signal.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainpay/internal/config"
	"chainpay/internal/repositories"
	"chainpay/internal/repositories/cache"
	"chainpay/internal/routes"
	"chainpay/internal/services/billing"
	"chainpay/internal/services/chain"
	"chainpay/internal/services/intent"
	"chainpay/internal/services/signature"
	"chainpay/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	// Initialize PostgreSQL
	db, err := repositories.InitDB(repositories.DefaultDBConfig())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("⚠️ Failed to close database connection: %v", err)
		}
	}()

	// Initialize Redis (poller leader lease)
	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("⚠️ Failed to close Redis connection: %v", err)
		}
	}()

	// Repositories
	intentRepo := repositories.NewPaymentIntentRepository(db)
	eventRepo := repositories.NewWebhookEventRepository(db)
	merchantRepo := repositories.NewMerchantRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)

	// Services
	sigService := signature.NewService()
	stateMachine := intent.NewService(intentRepo, eventRepo)

	notifier := webhook.NewService(eventRepo, merchantRepo, sigService, nil)
	worker := webhook.NewWorker(
		notifier,
		eventRepo,
		config.GetIntEnv("WEBHOOK_WORKERS", webhook.DefaultWorkers),
		config.GetIntEnv("WEBHOOK_BATCH_SIZE", webhook.DefaultBatchSize),
		config.GetDurationEnv("WEBHOOK_POLL_INTERVAL", webhook.DefaultPollInterval),
	)

	pollInterval := config.GetDurationEnv("CHAIN_POLL_INTERVAL", chain.DefaultPollInterval)
	chainClient := chain.NewClient(
		config.GetEnv("CHAIN_API_URL", "http://localhost:8545"),
		config.GetEnv("CHAIN_API_KEY", ""),
	)
	dispatcher := chain.NewDispatcher(config.GetEnv("CONTRACT_ADDRESS", ""), stateMachine)
	// lease TTL outlives a few missed ticks so a brief stall does not
	// hand polling to another instance
	lease := cache.NewLease(redisClient, "chainpay:poller:lease", 3*pollInterval+10*time.Second)
	poller := chain.NewPoller(chainClient, dispatcher, lease, chain.PollerConfig{Interval: pollInterval})

	scheduler := billing.NewScheduler(
		subscriptionRepo,
		config.GetDurationEnv("RENEWAL_INTERVAL", billing.DefaultRunInterval),
		config.GetIntEnv("RENEWAL_BATCH_SIZE", 200),
	)

	// Start the pipeline
	worker.Start()
	poller.Start()
	scheduler.Start()
	defer func() {
		poller.Stop()
		scheduler.Stop()
		worker.Stop()
	}()

	// Ops HTTP server
	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, X-Merchant-Id, X-API-Key",
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		DB:        db,
		Intents:   intentRepo,
		Events:    eventRepo,
		Merchants: merchantRepo,
		Notifier:  notifier,
	})

	go func() {
		if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Shut down deliberately on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}
}
