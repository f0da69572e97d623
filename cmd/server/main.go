package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	integrationapp "github.com/titledesk/backend/internal/application/integration"
	"github.com/titledesk/backend/internal/domain/title"
	"github.com/titledesk/backend/internal/infrastructure/auth"
	"github.com/titledesk/backend/internal/infrastructure/cache"
	"github.com/titledesk/backend/internal/infrastructure/config"
	"github.com/titledesk/backend/internal/infrastructure/logger"
	"github.com/titledesk/backend/internal/infrastructure/oauth"
	"github.com/titledesk/backend/internal/infrastructure/persistence"
	"github.com/titledesk/backend/internal/infrastructure/security"
	"github.com/titledesk/backend/internal/infrastructure/storage"
	"github.com/titledesk/backend/internal/infrastructure/telemetry"
	"github.com/titledesk/backend/internal/infrastructure/tracker"
	"github.com/titledesk/backend/internal/infrastructure/workflow"
	"github.com/titledesk/backend/internal/interfaces/http/handler"
	"github.com/titledesk/backend/internal/interfaces/http/middleware"
	"github.com/titledesk/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/titledesk/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			TitleDesk Backend API
//	@version		1.0
//	@description	Land-title production backend with external task-tracker integration
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/titledesk/backend
//	@contact.email	support@titledesk.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

// version is stamped by the release build:
//
//	go build -ldflags "-X main.version=$(git describe --tags)"
var version = "dev"

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

	log.Info("Starting TitleDesk Backend",
		zap.String("app", cfg.App.Name),
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing (no-op provider when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry metrics (no-op provider when disabled)
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry log export (no-op when disabled) and tee the
	// console logger into it so every line also reaches the collector
	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logsProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down log exporter", zap.Error(err))
		}
	}()
	log = logsProvider.Attach(log, logger.ParseLevel(cfg.Log.Level))

	// Initialize continuous profiling (no-op when disabled)
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.PyroscopeAddress,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Associate CPU profiles with trace spans when both are running
	if cfg.Telemetry.Enabled && cfg.Telemetry.ProfilingEnabled {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database query tracing when enabled
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		} else {
			log.Info("Database tracing enabled",
				zap.Duration("slow_query_threshold", cfg.Telemetry.DBSlowQueryThresh))
		}
	}

	// Register query latency and pool saturation metrics
	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbMetricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, dbMetricsCfg, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	} else if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(context.Background())
		defer dbMetrics.Stop()
	}

	// Initialize repositories
	credentialRepo := persistence.NewGormTrackerCredentialRepository(db.DB)
	orderReader := persistence.NewGormOrderReader(db.DB)

	// Refresh secrets are encrypted at rest with a key derived from the
	// configured passphrase
	cipher, err := security.NewSecretCipher(cfg.Tracker.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher (set tracker.encryption_key)", zap.Error(err))
	}

	// Initialize the tracker identity provider (OAuth authorization code flow)
	provider, err := oauth.NewProvider(&oauth.ProviderConfig{
		ClientID:       cfg.Tracker.ClientID,
		ClientSecret:   cfg.Tracker.ClientSecret,
		AuthURL:        cfg.Tracker.AuthURL,
		TokenURL:       cfg.Tracker.TokenURL,
		AccountsURL:    cfg.Tracker.AccountsURL,
		RedirectURI:    cfg.Tracker.RedirectURI,
		Scopes:         cfg.Tracker.Scopes,
		TimeoutSeconds: cfg.Tracker.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to initialize tracker identity provider", zap.Error(err))
	}

	// Session store for pending selections and state nonces
	sessionFactory := cache.NewSessionStoreFactory(cfg.Tracker.SelectionStore, cfg.Redis, cache.WithLogger(log))
	sessionStore, err := sessionFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create tracker session store", zap.Error(err))
	}
	defer func() {
		if err := sessionStore.Close(); err != nil {
			log.Error("Error closing tracker session store", zap.Error(err))
		}
	}()

	// Token service mints access secrets from the stored refresh secret
	tokenService := integrationapp.NewTokenService(credentialRepo, provider, cipher, log,
		integrationapp.DefaultTokenConfig())

	// Tracker REST client with retry/backoff on 429 and 5xx
	trackerClientConfig := tracker.NewClientConfig(cfg.Tracker.APIBaseURL)
	trackerClientConfig.TimeoutSeconds = cfg.Tracker.TimeoutSeconds
	trackerClient, err := tracker.NewClient(trackerClientConfig, tokenService)
	if err != nil {
		log.Fatal("Failed to initialize tracker client", zap.Error(err))
	}

	// Register push workflows for configured product types. A product type
	// without a destination project stays unregistered.
	strategyRegistry := workflow.NewRegistry()
	if leaseCfg := cfg.Workflows.LeaseRunsheets; leaseCfg.ProjectID != "" {
		leaseStrategy, err := workflow.NewLeaseRunsheetStrategy(workflow.LeaseRunsheetConfig{
			ProjectID:   leaseCfg.ProjectID,
			Agencies:    toAgencies(leaseCfg.Agencies),
			ReportTypes: toReportTypes(leaseCfg.ReportTypes),
		})
		if err != nil {
			log.Fatal("Invalid lease runsheet workflow configuration", zap.Error(err))
		}
		strategyRegistry.Register(leaseStrategy)
		log.Info("Lease runsheet workflow registered", zap.String("project_id", leaseCfg.ProjectID))
	}
	if abstractCfg := cfg.Workflows.AbstractReports; abstractCfg.ProjectID != "" {
		abstractStrategy, err := workflow.NewAbstractReportStrategy(workflow.AbstractReportConfig{
			ProjectID:      abstractCfg.ProjectID,
			ReportTypes:    toReportTypes(abstractCfg.ReportTypes),
			Phases:         abstractCfg.Phases,
			PerLeasePhases: abstractCfg.PerLeasePhases,
			AssigneeIDs:    abstractCfg.AssigneeIDs,
		})
		if err != nil {
			log.Fatal("Invalid abstract report workflow configuration", zap.Error(err))
		}
		strategyRegistry.Register(abstractStrategy)
		log.Info("Abstract report workflow registered", zap.String("project_id", abstractCfg.ProjectID))
	}
	if len(strategyRegistry.All()) == 0 {
		log.Warn("No push workflows configured, tracker pushes will report nothing to push")
	}

	// Delivery links resolve to presigned S3 downloads when storage is
	// configured, stub URLs otherwise
	var deliveryLinks integrationapp.DeliveryLinkResolver
	if cfg.Storage.Bucket != "" && cfg.Storage.AccessKey != "" && cfg.Storage.SecretKey != "" {
		s3Store, err := storage.NewS3DeliveryStore(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize delivery storage", zap.Error(err))
		}
		verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s3Store.VerifyBucket(verifyCtx); err != nil {
			log.Warn("Delivery bucket check failed, download links may not resolve", zap.Error(err))
		}
		cancelVerify()
		deliveryLinks = s3Store
		log.Info("S3 delivery storage configured", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		deliveryLinks = storage.NewStubDeliveryStore()
		log.Warn("Delivery storage not configured, delivery links will use stub URLs")
	}

	// Initialize application services
	connectService := integrationapp.NewConnectService(
		credentialRepo, provider, sessionStore, sessionStore, cipher, log,
		integrationapp.ConnectConfig{StateTTL: cfg.Tracker.StateTTL},
	)
	pushService := integrationapp.NewPushService(orderReader, trackerClient, strategyRegistry, deliveryLinks, log)

	// App-session authentication. Token revocation follows the session
	// backend: when tracker sessions run on Redis, revocations share that
	// client so logouts reach every instance.
	jwtService := auth.NewJWTService(cfg.JWT)
	var tokenBlacklist auth.TokenBlacklist
	if redisStore, ok := sessionStore.(*cache.RedisSessionStore); ok {
		tokenBlacklist = auth.NewRedisTokenBlacklistWithClient(redisStore.GetClient())
		log.Info("Using Redis token blacklist")
	} else {
		memBlacklist := auth.NewInMemoryTokenBlacklist()
		defer func() {
			_ = memBlacklist.Close()
		}()
		tokenBlacklist = memBlacklist
		log.Warn("Using in-memory token blacklist, logouts will not propagate across instances")
	}

	// Business metrics observe connection health and push outcomes
	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider.IsEnabled() {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:              meterProvider.Meter("business"),
			Logger:             log,
			CredentialProvider: telemetry.NewGormCredentialMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize business metrics", zap.Error(err))
			businessMetrics = nil
		} else {
			businessMetrics.StartPeriodicCollection(context.Background(), 0)
			defer businessMetrics.Stop()
		}
	}

	// Initialize HTTP handlers
	trackerHandler := handler.NewTrackerHandler(connectService, pushService)
	pushHandler := handler.NewPushHandler(pushService, businessMetrics)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	// 8. Tracing/Metrics/Profiling - Observability (when enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Observability middleware
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnrichment())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Swagger documentation endpoint with production protection
	swaggerAuth := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		Logger:         log,
	})
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, swaggerAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes.
	// The tracker callback stays authenticated: the provider redirects the
	// user's own browser, which still carries the app session.
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Tracker domain (connection lifecycle, account selection, projects)
	trackerRoutes := router.NewDomainGroup("tracker", "/tracker")
	trackerRoutes.GET("/connect", trackerHandler.Connect)
	trackerRoutes.GET("/callback", trackerHandler.Callback)
	trackerRoutes.GET("/status", trackerHandler.Status)
	trackerRoutes.DELETE("/connection", trackerHandler.Disconnect)
	trackerRoutes.GET("/pending-selection", trackerHandler.PendingSelection)
	trackerRoutes.POST("/pending-selection/commit", trackerHandler.CommitSelection)
	trackerRoutes.GET("/projects", trackerHandler.Projects)

	// Orders domain (tracker push)
	orderRoutes := router.NewDomainGroup("orders", "/orders")
	pushLimiter := middleware.NewRateLimiter(10, time.Minute)
	orderRoutes.POST("/:id/tracker-push", middleware.PushRateLimit(pushLimiter), pushHandler.PushOrder)

	// Register all domain groups
	r.Register(trackerRoutes).
		Register(orderRoutes)

	// Register system routes with swagger-documented handlers
	systemHandler := handler.NewSystemHandler(version)
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
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

	// Start server in goroutine
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
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(c.Request.Context()); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		pool := db.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
			"pool": gin.H{
				"open":   pool.OpenConnections,
				"in_use": pool.InUse,
				"idle":   pool.Idle,
				"waited": pool.WaitCount,
			},
		})
	}
}

// toAgencies converts configured agency names to domain values
func toAgencies(names []string) []title.Agency {
	agencies := make([]title.Agency, 0, len(names))
	for _, name := range names {
		agencies = append(agencies, title.Agency(name))
	}
	return agencies
}

// toReportTypes converts configured report type names to domain values
func toReportTypes(names []string) []title.ReportType {
	types := make([]title.ReportType, 0, len(names))
	for _, name := range names {
		types = append(types, title.ReportType(name))
	}
	return types
}
