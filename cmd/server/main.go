package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/crm/backend/internal/application/event"
	fiscalapp "github.com/crm/backend/internal/application/fiscal"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/event"
	"github.com/crm/backend/internal/infrastructure/invoicing"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/storage"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			CRM Fiscal Engine API
//	@version		1.0
//	@description	Financial document lifecycle and reconciliation engine: payment ledger, fiscal document issuance, credit notes, and provider sync.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting fiscal engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize repositories
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	settingsRepo := persistence.NewGormOrganizationSettingsRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Outbox publisher for transactional event saving
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	saleRepo.SetOutboxEventSaver(outboxPublisher)
	paymentRepo.SetOutboxEventSaver(outboxPublisher)

	// Credit note read view cache: Redis when reachable, in-memory otherwise
	var creditNoteCache fiscalapp.CreditNoteCache
	redisCache, err := cache.NewRedisCreditNoteCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cache.WithCreditNoteCacheLogger(log))
	if err != nil {
		log.Warn("Redis unavailable, using in-memory credit note cache", zap.Error(err))
		creditNoteCache = cache.NewInMemoryCreditNoteCache()
	} else {
		creditNoteCache = redisCache
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Error("Error closing Redis cache", zap.Error(err))
			}
		}()
	}

	// Initialize event bus and subscribe cross-cutting handlers.
	// Handlers are wrapped for idempotent delivery since the outbox
	// processor retries with at-least-once semantics.
	eventBus := event.NewInMemoryEventBus(log)
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	invalidationHandler := cache.NewCreditNoteInvalidationHandler(creditNoteCache, log)
	eventBus.Subscribe(event.NewIdempotentHandler(invalidationHandler, idempotencyStore, log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Outbox processor for guaranteed event delivery
	outboxProcessorConfig := event.DefaultOutboxProcessorConfig()
	if cfg.Event.BatchSize > 0 {
		outboxProcessorConfig.BatchSize = cfg.Event.BatchSize
	}
	if cfg.Event.PollInterval > 0 {
		outboxProcessorConfig.PollInterval = cfg.Event.PollInterval
	}
	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxProcessorConfig, log)
	if cfg.Event.ProcessorEnabled {
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxProcessorConfig.BatchSize),
			zap.Duration("poll_interval", outboxProcessorConfig.PollInterval),
		)
	}

	// Object storage for archived invoice files
	var fileStorage fiscalapp.ObjectStorage
	if cfg.Storage.Bucket != "" {
		s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		fileStorage = s3Storage
		log.Info("Object storage configured", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		log.Warn("Object storage not configured, file uploads disabled")
		fileStorage = storage.NewStubObjectStorage()
	}

	// Per-tenant invoicing provider resolution
	providerFactory := func(creds fiscal.ProviderCredentials) (fiscal.InvoicingProvider, error) {
		return invoicing.NewInvoiceXpressAdapter(invoicing.ConfigFromCredentials(creds, cfg.Invoicing.Timeout))
	}
	resolver := fiscalapp.NewCredentialResolver(settingsRepo, providerFactory)

	// Initialize application services
	paymentService := fiscalapp.NewPaymentService(saleRepo, paymentRepo, resolver, eventBus, fileStorage, log)
	documentService := fiscalapp.NewDocumentService(saleRepo, paymentRepo, resolver, eventBus, log)
	creditNoteService := fiscalapp.NewCreditNoteService(saleRepo, paymentRepo, resolver, eventBus, creditNoteCache, log)
	syncService := fiscalapp.NewSyncService(saleRepo, paymentRepo, resolver, log)
	settingsService := fiscalapp.NewSettingsService(settingsRepo)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Initialize HTTP handlers
	paymentHandler := handler.NewPaymentHandler(paymentService)
	documentHandler := handler.NewDocumentHandler(documentService)
	creditNoteHandler := handler.NewCreditNoteHandler(creditNoteService)
	syncHandler := handler.NewSyncHandler(syncService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	outboxHandler := handler.NewOutboxHandler(outboxService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// JWT authentication for API routes
	jwtService := auth.NewJWTService(cfg.JWT)
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/api/v1/ping",
		},
		Logger: log,
	}
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Tenant resolution runs after JWT so claims take priority over the header
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.SkipPaths = []string{"/health", "/api/v1/ping"}
	tenantConfig.Logger = log
	engine.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Health check endpoint
	engine.GET("/health", healthHandler(db))

	// Fiscal API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	fiscalRoutes := router.NewDomainGroup("fiscal", "/fiscal")

	// Payment ledger
	fiscalRoutes.POST("/sales/:saleId/payments", paymentHandler.Create)
	fiscalRoutes.GET("/sales/:saleId/payments", paymentHandler.List)
	fiscalRoutes.GET("/sales/:saleId/payments/summary", paymentHandler.Summary)
	fiscalRoutes.PUT("/payments/:id", paymentHandler.Update)
	fiscalRoutes.DELETE("/payments/:id", paymentHandler.Delete)
	fiscalRoutes.POST("/payments/:id/file", paymentHandler.AttachFile)

	// Document issuance and cancellation
	fiscalRoutes.POST("/sales/:saleId/invoice", documentHandler.IssueInvoice)
	fiscalRoutes.POST("/payments/:id/invoice-receipt", documentHandler.IssueInvoiceReceipt)
	fiscalRoutes.POST("/payments/:id/receipt", documentHandler.GenerateReceipt)
	fiscalRoutes.POST("/sales/:saleId/document/cancel", documentHandler.CancelSaleDocument)
	fiscalRoutes.POST("/payments/:id/document/cancel", documentHandler.CancelPaymentDocument)

	// Credit notes
	fiscalRoutes.POST("/sales/:saleId/credit-note", creditNoteHandler.CreateForSale)
	fiscalRoutes.POST("/payments/:id/credit-note", creditNoteHandler.CreateForPayment)
	fiscalRoutes.GET("/credit-notes", creditNoteHandler.List)

	// Reconciliation
	fiscalRoutes.POST("/sync/invoices", syncHandler.SyncInvoices)
	fiscalRoutes.POST("/sync/credit-notes", syncHandler.SyncCreditNotes)
	fiscalRoutes.GET("/documents/:documentId", syncHandler.GetDocumentDetails)

	// Organization settings
	fiscalRoutes.GET("/settings", settingsHandler.Get)
	fiscalRoutes.PUT("/settings", settingsHandler.Update)

	// Event delivery operations
	fiscalRoutes.GET("/events/dead", outboxHandler.GetDeadLetterEntries)
	fiscalRoutes.POST("/events/dead/retry-all", outboxHandler.RetryAllDeadEntries)
	fiscalRoutes.GET("/events/stats", outboxHandler.GetStats)
	fiscalRoutes.GET("/events/:id", outboxHandler.GetEntry)
	fiscalRoutes.POST("/events/:id/retry", outboxHandler.RetryDeadEntry)

	r.Register(fiscalRoutes)
	r.Setup()

	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
