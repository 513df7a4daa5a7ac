package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/cache"
	"github.com/voltgrid/csms/internal/adapter/devicegw"
	"github.com/voltgrid/csms/internal/adapter/http/fiber/handlers"
	"github.com/voltgrid/csms/internal/adapter/http/fiber/middleware"
	"github.com/voltgrid/csms/internal/adapter/queue"
	"github.com/voltgrid/csms/internal/adapter/storage/postgres"
	"github.com/voltgrid/csms/internal/observability/telemetry"
	"github.com/voltgrid/csms/internal/ports"
	"github.com/voltgrid/csms/internal/service/devicestate"
	"github.com/voltgrid/csms/internal/service/dispatch"
	"github.com/voltgrid/csms/internal/service/ingest"
	"github.com/voltgrid/csms/internal/service/session"
	"github.com/voltgrid/csms/internal/service/wallet"
	"github.com/voltgrid/csms/pkg/config"
)

const serviceName = "csms-core"

func main() {
	// 1. Initialize Logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// 2. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting CSMS core",
		zap.String("service", serviceName),
		zap.String("environment", cfg.App.Environment),
	)

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.Tracing.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Initialize PostgreSQL Connection Pool
	db, err := postgres.NewConnection(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := postgres.RunMigrations(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// 5. Initialize Cache (Redis, local fallback for dev)
	var appCache ports.Cache
	if cfg.Redis.Enabled {
		appCache, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		logger.Warn("Redis disabled, using in-process cache")
		appCache = cache.NewLocalCache(time.Minute, logger)
	}
	defer appCache.Close()

	// 6. Initialize Message Queue
	var messageQueue queue.MessageQueue
	if cfg.Queue.Enabled {
		switch cfg.Queue.Driver {
		case "nats":
			messageQueue, err = queue.NewNATSQueue(cfg.Queue.URL, logger)
		default:
			messageQueue, err = queue.NewRabbitMQQueue(cfg.Queue.URL, logger)
		}
		if err != nil {
			logger.Fatal("Failed to connect to message queue", zap.Error(err))
		}
		defer messageQueue.Close()
	} else {
		logger.Warn("Queue disabled, commands go through the direct gateway path")
	}

	// 7. Initialize Repositories
	sessionRepo := postgres.NewSessionRepository(db, logger)
	walletRepo := postgres.NewWalletRepository(db, logger)
	protocolLogRepo := postgres.NewProtocolLogRepository(db, logger)
	stationRepo := postgres.NewStationRepository(db, logger)
	tariffRepo := postgres.NewTariffRepository(db, logger)

	// 8. Initialize Services
	gateway := devicegw.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout, logger)
	dispatcher := dispatch.NewDispatcher(messageQueue, gateway, logger)
	walletService := wallet.NewService(walletRepo, cfg.Pricing.Currency, logger)
	deviceStateService := devicestate.NewService(appCache, stationRepo, protocolLogRepo, logger)
	sessionService := session.NewService(
		sessionRepo, walletService, dispatcher, deviceStateService,
		protocolLogRepo, tariffRepo, appCache,
		session.Config{
			SystemCustomerID:      cfg.Session.SystemCustomerID,
			AllowResumeOwnSession: cfg.Session.AllowResumeOwnSession,
			MinBillableDuration:   cfg.Session.MinBillableDuration,
			MeterPollRetries:      cfg.Session.MeterPollRetries,
			MeterPollInterval:     cfg.Session.MeterPollInterval,
			FallbackBaseRate:      cfg.Pricing.BaseRatePerKWh,
			FallbackTaxPercent:    cfg.Pricing.TaxPercent,
			ListCacheTTL:          cfg.Cache.SessionListTTL,
		},
		logger,
	)

	// 9. Start the protocol event consumer
	if messageQueue != nil {
		consumer := ingest.NewConsumer(messageQueue, protocolLogRepo, stationRepo, sessionRepo, appCache, cfg.Cache.StatusTTL, logger)
		if err := consumer.Start(); err != nil {
			logger.Fatal("Failed to start protocol event consumer", zap.Error(err))
		}
	}

	// 10. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	} else {
		app.Use(middleware.DefaultCORS())
	}
	app.Use(middleware.CircuitBreaker(logger))

	// Health Check Endpoints
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		if err := sqlDB.Ping(); err != nil {
			return c.Status(503).SendString("Database not ready")
		}
		if err := appCache.Ping(); err != nil {
			return c.Status(503).SendString("Cache not ready")
		}
		return c.SendString("Ready")
	})

	// Metrics endpoint for Prometheus
	if cfg.Prometheus.Enabled {
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
			handler(c.Context())
			return nil
		})
	}

	// API v1 Routes
	v1 := app.Group("/api/v1")

	sessionHandler := handlers.NewSessionHandler(sessionService, logger)
	v1.Post("/sessions/start", sessionHandler.Start)
	v1.Post("/sessions/stop", sessionHandler.Stop)
	v1.Get("/sessions/:id", sessionHandler.Get)
	v1.Get("/sessions", sessionHandler.List)
	v1.Post("/operator/sessions/start", sessionHandler.OperatorStart)
	v1.Post("/operator/sessions/stop", sessionHandler.OperatorStop)

	deviceHandler := handlers.NewDeviceHandler(deviceStateService, logger)
	v1.Get("/devices/:deviceId/status", deviceHandler.Status)
	v1.Get("/devices/:deviceId/connector-status", deviceHandler.ConnectorStatus)
	v1.Get("/devices/:deviceId/active-transaction", deviceHandler.ActiveTransaction)

	walletHandler := handlers.NewWalletHandler(walletService, logger)
	v1.Get("/wallets/:customerId", walletHandler.Get)
	v1.Post("/wallets/:customerId/topup", walletHandler.TopUp)
	v1.Get("/wallets/:customerId/transactions", walletHandler.Transactions)

	// 11. Start server and wait for shutdown signal
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
}
