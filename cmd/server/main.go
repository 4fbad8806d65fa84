package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablegate/tablegate/internal/catalog"
	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/handler"
	"github.com/tablegate/tablegate/internal/identity"
	"github.com/tablegate/tablegate/internal/middleware"
	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/monitor"
	"github.com/tablegate/tablegate/internal/pkg/logger"
	"github.com/tablegate/tablegate/internal/repository"
	"github.com/tablegate/tablegate/internal/service"
	"github.com/tablegate/tablegate/internal/sqlbuilder"
)

func main() {
	// 1. Configuration, then logger at the configured level.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Persistence. The audit recorder gets its own pool so its writes
	// never ride the business connection.
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	auditDB, err := repository.NewAuditDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open audit database: %v", err)
	}
	ledgerDB, err := repository.NewLedgerDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open ledger database: %v", err)
	}

	crudStore := repository.NewCrudStore(db)
	auditStore, err := repository.NewAuditStore(auditDB)
	if err != nil {
		log.Fatalf("Failed to prepare audit schema: %v", err)
	}
	ledgerStore := repository.NewLedgerStore(ledgerDB)
	userStore := repository.NewUserStore(ledgerDB)

	// Failure counters and idempotency (Redis > Memory).
	var redisClient *repository.RedisClient
	var counter service.FailureCounter
	var idemStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
			counter = redisClient
			idemStore = repository.NewRedisIdempotencyStore(redisClient, 0)
		} else {
			logger.Error("Redis unavailable, falling back to memory", "error", err.Error())
		}
	}
	if counter == nil {
		counter = repository.NewMemoryFailureCounter(cfg.LockoutWindow())
	}
	if idemStore == nil {
		idemStore = middleware.NewInMemIdempotencyStore()
	}

	// 3. Catalog.
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to load table catalog: %v", err)
	}
	logger.Info("Catalog loaded", "path", cfg.Catalog.Path, "tables", len(cat.Tables()))

	// 4. Core services.
	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, auditStore, cfg.AuditWriteTimeout(), cfg.Audit.FailClosed)
	if err != nil {
		log.Fatalf("Failed to initialize audit recorder: %v", err)
	}
	if redisClient != nil {
		auditSvc.AddSink(func(rec *model.AuditRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := redisClient.PushAudit(ctx, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax, rec); err != nil {
				logger.Warn("redis audit mirror failed", "error", err.Error())
			}
		})
	}

	hub := monitor.NewHub(context.Background())
	go hub.Run()
	auditSvc.AddSink(hub.Publish)

	builder := sqlbuilder.New(cfg.Limits.MaxPageSize)
	executor := service.NewExecutor(cat, builder, crudStore, auditSvc)

	ledgerSvc := service.NewLedgerService(ledgerStore, counter, cfg.LockoutWindow(), cfg.Auth.LockoutThreshold)
	accountSvc := service.NewAccountService(userStore, ledgerSvc)

	if cfg.Auth.BootstrapUser != "" && cfg.Auth.BootstrapPassword != "" {
		if _, err := accountSvc.Bootstrap(context.Background(), cfg.Auth.BootstrapUser, cfg.Auth.BootstrapPassword); err != nil {
			log.Fatalf("Failed to bootstrap account: %v", err)
		}
		logger.Info("Bootstrap account ready", "username", cfg.Auth.BootstrapUser)
	}

	var verifier identity.Verifier
	switch cfg.Auth.Mode {
	case "jwt":
		verifier, err = identity.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			log.Fatalf("Failed to initialize JWT verifier: %v", err)
		}
	default:
		verifier = identity.NewSessionVerifier(ledgerStore, userStore)
	}

	// 5. Handlers.
	dataHandler := handler.NewDataHandler(executor)
	authHandler := handler.NewAuthHandler(accountSvc)
	auditHandler := handler.NewAuditHandler(auditSvc, ledgerSvc)
	catalogHandler := handler.NewCatalogHandler(cat)

	// 6. Router.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tablegate"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")

	// Login is the one unauthenticated API route.
	v1.POST("/auth/login", authHandler.Login)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(verifier))
	authed.Use(middleware.RateLimitMiddleware(middleware.NewActorLimiter(cfg.Limits.RateQPS, cfg.Limits.RateBurst)))
	{
		authed.POST("/auth/logout", authHandler.Logout)

		tables := authed.Group("/tables")
		tables.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
		tables.Use(middleware.IdempotencyMiddleware(idemStore))
		{
			tables.GET("/:table", dataHandler.List)
			tables.POST("/:table", dataHandler.Create)
			tables.GET("/:table/:key", dataHandler.Read)
			tables.PATCH("/:table/:key", dataHandler.Update)
			tables.DELETE("/:table/:key", dataHandler.Delete)
		}

		authed.GET("/catalog", catalogHandler.List)
		authed.GET("/catalog/:table", catalogHandler.Describe)

		// The live audit feed exposes the same data as the audit reads, so
		// it sits behind the same admin key.
		admin := authed.Group("")
		admin.Use(middleware.AdminMiddleware(cfg))
		{
			admin.POST("/catalog/reload", catalogHandler.Reload)
			admin.GET("/audit/records", auditHandler.Records)
			admin.GET("/audit/logins", auditHandler.Logins)
			admin.GET("/audit/sessions", auditHandler.Sessions)
			admin.GET("/monitor/stream", hub.Stream)
		}
	}

	// 7. Serve with graceful shutdown.
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("TableGate started", "port", cfg.Server.Port, "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	// Stop accepting audit traffic only after in-flight requests drained.
	hub.Stop()
	auditSvc.Close()

	logger.Info("Server exiting")
}
