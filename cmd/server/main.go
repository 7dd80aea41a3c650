// Package main is the entry point for the wallet ledger service. It wires
// the stores, queues and services together, starts the worker pools and
// serves the HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"payvault/internal/config"
	"payvault/internal/handlers"
	"payvault/internal/lock"
	"payvault/internal/middleware"
	"payvault/internal/queue"
	"payvault/internal/repositories"
	"payvault/internal/repositories/cache"
	"payvault/internal/services/ledger"
	"payvault/internal/services/payment"
	"payvault/internal/services/risk"
	"payvault/internal/services/transaction"
	"payvault/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := repositories.InitDB()
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	})
	if err := cache.Ping(redisClient); err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer redisClient.Close()

	// Repositories
	walletRepo := repositories.NewWalletRepository(db)
	txnRepo := repositories.NewTransactionRepository(db)
	tenantRepo := repositories.NewTenantRepository(db)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// Infrastructure
	locks := lock.NewManager(redisClient)
	paymentsQueue := queue.New(redisClient, queue.QueuePayments)
	webhooksQueue := queue.New(redisClient, queue.QueueWebhooks)

	// Services
	ledgerSvc := ledger.NewService(walletRepo, cacheRepo, locks, ledger.Config{}, logger)
	riskSvc := risk.NewService()

	gateways := buildGateways()

	webhookSvc := webhook.NewService(txnRepo, tenantRepo, webhooksQueue, nil, logger)
	txnSvc := transaction.NewService(txnRepo, ledgerSvc, gateways, riskSvc, paymentsQueue, webhooksQueue, logger)

	// Worker pools: money movement narrow, notifications wide.
	paymentsWorker := queue.NewWorker(paymentsQueue, queue.WorkerConfig{
		Concurrency: config.GetIntEnv("PAYMENTS_CONCURRENCY", 2),
	}, logger)
	transaction.RegisterHandlers(paymentsWorker, txnSvc)

	webhooksWorker := queue.NewWorker(webhooksQueue, queue.WorkerConfig{
		Concurrency: config.GetIntEnv("WEBHOOKS_CONCURRENCY", 10),
	}, logger)
	webhook.RegisterHandlers(webhooksWorker, webhookSvc)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go paymentsWorker.Run(workerCtx)
	go webhooksWorker.Run(workerCtx)

	// HTTP surface
	app := fiber.New(fiber.Config{AppName: "payvault"})
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	handlers.SetupRoutes(app, handlers.Deps{
		Auth:         middleware.NewAuthMiddleware(tenantRepo),
		Wallets:      handlers.NewWalletHandler(ledgerSvc),
		Transactions: handlers.NewTransactionHandler(txnSvc, webhookSvc),
		Webhooks:     handlers.NewProviderWebhookHandler(gateways, txnSvc, logger),
	})

	go func() {
		addr := ":" + config.GetEnv("PORT", "8080")
		if err := app.Listen(addr); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopWorkers()
	if err := app.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

func buildLogger() (*zap.Logger, error) {
	if config.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func buildGateways() *payment.Registry {
	gateways := []payment.Gateway{
		payment.NewMockGateway(config.GetEnv("MOCK_WEBHOOK_SECRET", "mock-secret")),
	}
	if key := config.GetEnv("STRIPE_SECRET_KEY", ""); key != "" {
		gateways = append(gateways, payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     key,
			WebhookSecret: config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		}))
	}
	return payment.NewRegistry(gateways...)
}
