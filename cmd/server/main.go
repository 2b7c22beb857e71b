package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Baptiste-Yucca/rent2repay/internal/config"
	"github.com/Baptiste-Yucca/rent2repay/internal/handler"
	"github.com/Baptiste-Yucca/rent2repay/internal/middleware"
	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/logger"
	"github.com/Baptiste-Yucca/rent2repay/internal/repository"
	"github.com/Baptiste-Yucca/rent2repay/internal/service"
	"github.com/Baptiste-Yucca/rent2repay/internal/stream"
	"github.com/Baptiste-Yucca/rent2repay/internal/transfer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	window := service.NewWindowTracker(cfg.Engine.PeriodLengthSeconds)
	assets := service.NewAssetBook(cfg.Assets)

	// 2. Initialize Persistence
	// Auth + Event Persistence (Postgres > Memory)
	var authStore service.AuthStore
	var eventRepo service.EventRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			authStore = repository.NewPostgresAuthStore(db, window.PeriodLength())
			eventRepo = repository.NewPostgresEventRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, falling back to memory", "error", err)
		}
	}
	if authStore == nil {
		authStore = service.NewMemoryAuthStore(window)
	}

	// Idempotency + Event list (Redis, optional)
	var idemStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			idemStore = repository.NewRedisIdempotencyStore(redisClient,
				time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
			if eventRepo == nil {
				eventRepo = repository.NewRedisEventRepo(redisClient, cfg.Redis.EventListKey, cfg.Redis.EventListMax)
			}
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if idemStore == nil {
		idemStore = middleware.NewInMemIdempotencyStore()
	}

	// 3. Initialize Core Services
	hub := stream.NewHub()
	eventSvc, err := service.NewEventService("./logs", eventRepo, hub)
	if err != nil {
		log.Fatalf("Failed to initialize event service: %v", err)
	}

	registry := service.NewRegistry(authStore, window, eventSvc)

	ctrl, err := service.NewController(
		common.HexToAddress(cfg.Auth.AdminAddress),
		model.FeeParameters{
			BotFeeBps:       cfg.Fees.BotFeeBps,
			DaoFeeBps:       cfg.Fees.DaoFeeBps,
			DaoFeeRecipient: common.HexToAddress(cfg.Fees.DaoFeeRecipient),
		},
		eventSvc,
	)
	if err != nil {
		log.Fatalf("Invalid engine configuration: %v", err)
	}

	// Value transfer primitive (on-chain > in-memory ledger)
	var transferor transfer.Transferor
	if cfg.Chain.RPCURL != "" && cfg.Chain.PrivateKey != "" {
		erc20, err := transfer.NewERC20Transferor(cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ChainID)
		if err != nil {
			log.Fatalf("Failed to initialize erc20 transferor: %v", err)
		}
		logger.Info("✅ Using on-chain ERC20 transfers", "chain_id", cfg.Chain.ChainID)
		transferor = erc20
	} else {
		logger.Warn("⚠️ No chain configured, using in-memory ledger (dev only)")
		transferor = transfer.NewLedger()
	}

	engine := service.NewEngine(ctrl, registry, transferor, assets, eventSvc)

	// 4. Initialize Handlers
	authHandler := handler.NewAuthorizationHandler(registry, window, assets)
	repayHandler := handler.NewRepayHandler(engine, assets)
	adminHandler := handler.NewAdminHandler(ctrl)
	eventHandler := handler.NewEventHandler(eventSvc, hub)

	execLimiter := middleware.NewExecutorRateLimiter(cfg.Engine.ExecutorQPS, cfg.Engine.ExecutorBurst)

	// 5. Setup Router
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "rent2repay", "version": ctrl.State().Version})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	{
		// Self-service authorizations
		v1.POST("/authorizations", authHandler.Configure)
		v1.DELETE("/authorizations/:asset", authHandler.Revoke)
		v1.GET("/authorizations/:user/:asset", authHandler.Get)

		// Executor entry point
		repay := v1.Group("/repay")
		repay.Use(middleware.ExecutorMiddleware(execLimiter))
		repay.Use(middleware.IdempotencyMiddleware(idemStore))
		repay.POST("", repayHandler.Trigger)

		// Observability
		v1.GET("/events", eventHandler.List)
		v1.GET("/events/stream", eventHandler.Stream)

		// Admin surface
		admin := v1.Group("/admin")
		admin.POST("/accept", adminHandler.AcceptAdmin) // pending admin proves own identity
		admin.Use(middleware.AdminMiddleware(cfg, ctrl))
		{
			admin.PUT("/fees", adminHandler.SetFees)
			admin.POST("/pause", adminHandler.Pause)
			admin.POST("/unpause", adminHandler.Unpause)
			admin.POST("/transfer", adminHandler.TransferAdmin)
			admin.POST("/upgrade", adminHandler.Upgrade)
			admin.GET("/state", adminHandler.State)
		}
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 rent2repay engine started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	eventSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
