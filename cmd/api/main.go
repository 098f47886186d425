package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-batch-ledger/internal/handler"
	"go-batch-ledger/internal/middleware"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/internal/service"
	"go-batch-ledger/internal/ws"
	"go-batch-ledger/pkg/config"
	"go-batch-ledger/pkg/database"
	"go-batch-ledger/pkg/idgen"
	"go-batch-ledger/pkg/lock"
	"go-batch-ledger/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	log := logger.Get()

	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.EnvFileMissing() {
		log.Warn(".env file not found, relying on system env")
	}

	// Quantities go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// 2. Setup Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	// Auto Migrate (use a dedicated migration tool for production schemas)
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// 3. Batch locks: shared through Redis when configured, in-process otherwise
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		log.WithField("addr", cfg.RedisAddress).Info("Using Redis batch locks")
	}

	numbers, err := idgen.NewSnowflake(cfg.SnowflakeNode)
	if err != nil {
		log.Fatalf("Batch number generator: %v", err)
	}

	// 4. Setup WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := ws.NewHub()
	go wsHub.Run(hubCtx)

	// 5. Dependency Injection (Wiring Layers)
	store := service.NewStore(db, locker)

	batchService := service.NewBatchService(store, wsHub)
	allocationService := service.NewAllocationService(store, wsHub)
	splitService := service.NewSplitService(store, wsHub)
	mergeService := service.NewMergeService(store, numbers, wsHub)
	genealogyService := service.NewGenealogyService(store, wsHub)
	availability := service.NewAvailabilityCalculator(store)
	reportService := service.NewReportService(store)

	batchHandler := handler.NewBatchHandler(batchService, allocationService)
	ledgerHandler := handler.NewLedgerHandler(splitService, mergeService, allocationService,
		availability, genealogyService, reportService)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Batch Ledger v1.0",
		ErrorHandler: handler.ErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	// 7. Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	secret := []byte(cfg.JWTSecret)
	api := app.Group("/api/v1", middleware.Authenticate(secret, cfg.AuthRequired))
	handler.RegisterRoutes(api, batchHandler, ledgerHandler, cfg.AuthRequired)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	stopHub()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("Server exited")
}
