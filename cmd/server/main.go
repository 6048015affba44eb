package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
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
	"gorm.io/gorm"

	"github.com/seu-repo/energy-sentinel/internal/adapter/ai/modelservice"
	"github.com/seu-repo/energy-sentinel/internal/adapter/cache"
	"github.com/seu-repo/energy-sentinel/internal/adapter/grpc/server"
	"github.com/seu-repo/energy-sentinel/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/energy-sentinel/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/energy-sentinel/internal/adapter/queue"
	"github.com/seu-repo/energy-sentinel/internal/adapter/storage/postgres"
	"github.com/seu-repo/energy-sentinel/internal/adapter/vault"
	"github.com/seu-repo/energy-sentinel/internal/observability/telemetry"
	"github.com/seu-repo/energy-sentinel/internal/ports"
	"github.com/seu-repo/energy-sentinel/internal/service/anomaly"
	"github.com/seu-repo/energy-sentinel/internal/service/auth"
	"github.com/seu-repo/energy-sentinel/internal/service/health"
	"github.com/seu-repo/energy-sentinel/internal/service/ingestion"
	"github.com/seu-repo/energy-sentinel/internal/service/ownership"
	"github.com/seu-repo/energy-sentinel/internal/service/prediction"
	"github.com/seu-repo/energy-sentinel/internal/service/sweep"
	"github.com/seu-repo/energy-sentinel/pkg/config"
	applogger "github.com/seu-repo/energy-sentinel/pkg/logger"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// 2. Initialize Logger
	logger, err := applogger.New(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	logger.Info("Starting Energy Sentinel",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Secrets from Vault
	if cfg.Vault.Address != "" {
		sm, err := vault.NewSecretManager(cfg.Vault, logger)
		if err != nil {
			logger.Fatal("Failed to create Vault client", zap.Error(err))
		}
		if err := sm.Apply(ctx, cfg); err != nil {
			logger.Fatal("Failed to load secrets from Vault", zap.Error(err))
		}
	}
	if cfg.JWT.Secret == "" {
		logger.Fatal("jwt.secret is required")
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry, cfg.App.Version)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 5. Initialize PostgreSQL Connection Pool
	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// 6. Cache: Redis when configured, in-process otherwise
	var appCache ports.Cache
	if cfg.Redis.URL != "" {
		appCache, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		logger.Warn("No redis.url configured, using in-process cache and locks")
		appCache = cache.NewLocalCache(time.Minute, logger)
	}
	defer appCache.Close()

	// 7. Message Queue
	messageQueue, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	defer messageQueue.Close()

	// 8. Repositories
	records := postgres.NewConsumptionRepository(db, logger)
	devices := postgres.NewDeviceRepository(db, logger)
	modelRefs := postgres.NewModelRefRepository(db, logger)

	// 9. Services
	gate := ownership.NewGate(devices, appCache, messageQueue, cfg.Cache.DeviceTTL, logger)

	ingestionService := ingestion.NewService(records, gate, messageQueue, ingestion.Config{
		ClaimUnownedDevices:       cfg.Ingestion.ClaimUnownedDevices,
		MaxConsecutiveStoreErrors: cfg.Ingestion.MaxConsecutiveStoreErrors,
	}, logger)

	modelClient := modelservice.NewClient(cfg.ModelService, cfg.CircuitBreaker, logger)
	predictionService := prediction.NewService(records, modelRefs, modelClient, appCache, prediction.Config{
		DefaultWindow: cfg.Anomaly.DefaultWindow,
		PredictionTTL: cfg.Cache.PredictionTTL,
	}, logger)

	var remote ports.PredictionService
	if cfg.ModelService.BaseURL != "" {
		remote = predictionService
	} else {
		logger.Warn("No model_service.base_url configured, remote detection disabled")
	}

	detector := anomaly.NewDetector(records, gate, remote,
		anomaly.NewDeviceLock(appCache, cfg.Anomaly.LockTTL, logger),
		messageQueue,
		anomaly.Config{
			Threshold:     cfg.Anomaly.Threshold,
			MinSamples:    cfg.Anomaly.MinSamples,
			DefaultWindow: cfg.Anomaly.DefaultWindow,
		}, logger)

	orchestrator := sweep.NewOrchestrator(detector, ports.DetectionOptions{}, cfg.Sweep.Concurrency, logger)

	jwtService := auth.NewJWTService(cfg.JWT, appCache, logger)
	rbacService := auth.NewRBACService(logger)

	// 10. Health checks
	healthService := health.NewService(health.Config{Version: cfg.App.Version}, logger)
	healthService.RegisterPing("database", dbPing(db), health.StatusUnhealthy)
	healthService.RegisterPing("cache", func(ctx context.Context) error { return appCache.Ping() }, health.StatusUnhealthy)
	if cfg.ModelService.BaseURL != "" {
		healthService.RegisterPing("model_service", modelClient.Ping, health.StatusDegraded)
	}

	// 11. Background sweep scheduler
	schedulerDone := make(chan struct{})
	if cfg.Sweep.Enabled {
		scheduler := sweep.NewScheduler(orchestrator, devices, messageQueue, cfg.Sweep.Interval, cfg.Sweep.Concurrency, logger)
		go func() {
			defer close(schedulerDone)
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Sweep scheduler stopped", zap.Error(err))
			}
		}()
	} else {
		close(schedulerDone)
	}

	// 12. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Ingestion.MaxUploadSize,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	v1 := app.Group("/api/v1", middleware.CircuitBreaker(cfg.CircuitBreaker, logger))
	handlers.Routes{
		Validator:   jwtService,
		RBAC:        rbacService,
		Consumption: handlers.NewConsumptionHandler(ingestionService, detector, cfg.Ingestion.TempDir, logger),
		Devices:     handlers.NewDeviceHandler(gate, detector, logger),
		Models:      handlers.NewModelHandler(gate, predictionService, logger),
		Admin:       handlers.NewAdminHandler(orchestrator, devices, logger),
	}.Register(v1)

	// 13. gRPC health endpoint
	var grpcServer *server.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer = server.NewGRPCServer(healthService, jwtService, logger)
		go grpcServer.WatchReadiness(ctx, 15*time.Second)
		go func() {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
			if err != nil {
				logger.Fatal("Failed to listen for gRPC", zap.Error(err))
			}
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC Server failed", zap.Error(err))
			}
		}()
	}

	// 14. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 15. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Timed out waiting for in-flight sweeps")
	}

	logger.Info("Server exited gracefully")
}

func dbPing(db *gorm.DB) health.PingFunc {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
