package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	_ "go.uber.org/automaxprocs"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/payments"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/studio"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// ERROR+ records also go to system_logs
	pgLogHandler := logging.Install(database.DB)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	rdb := cache.NewRedisClient(cfg)

	// Stores
	profileStore := store.NewProfileStore(database.DB)
	creditStore := store.NewCreditStore(database.DB, rdb)
	usageStore := store.NewUsageStore(database.DB)
	taskStore := store.NewTaskStore(database.DB)

	// External systems
	processor := payments.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	publisher := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	provider := studio.NewClient(cfg.StudioAPIURL, cfg.StudioAPIKey, cfg.StudioTimeout)

	// Services
	creditService := services.NewCreditService(creditStore, cfg.FailOpen())
	quotaService := services.NewQuotaService(profileStore, usageStore, cfg.FailOpen())
	billingService := services.NewBillingService(profileStore, processor, publisher, cfg.PlanForPrice)
	studioService := services.NewStudioService(taskStore, creditService, provider)

	// Handlers
	profileHandler := handlers.NewProfileHandler(profileStore, creditService)
	healthHandler := handlers.NewHealthHandler(database.Ping, rdb)
	creditsHandler := handlers.NewCreditsHandler(creditService)
	quotaHandler := handlers.NewQuotaHandler(quotaService)
	billingHandler := handlers.NewBillingHandler(billingService)
	studioHandler := handlers.NewStudioHandler(studioService)
	webhookHandler := handlers.NewWebhookHandler(processor, billingService, studioService, cfg.StudioCallbackSecret)
	adminHandler := handlers.NewAdminHandler(profileHandler, creditService)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		Immutable:    true,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg,
		healthHandler,
		creditsHandler,
		quotaHandler,
		billingHandler,
		profileHandler,
		studioHandler,
		webhookHandler,
		adminHandler,
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	publisher.Close()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	database.Close()

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// 5xx details stay in the logs
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
