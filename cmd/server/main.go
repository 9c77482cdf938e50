package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appevent "github.com/feeledger/backend/internal/application/event"
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/feeledger/backend/internal/infrastructure/auth"
	"github.com/feeledger/backend/internal/infrastructure/cache"
	"github.com/feeledger/backend/internal/infrastructure/config"
	"github.com/feeledger/backend/internal/infrastructure/event"
	"github.com/feeledger/backend/internal/infrastructure/logger"
	"github.com/feeledger/backend/internal/infrastructure/notification"
	"github.com/feeledger/backend/internal/infrastructure/payment"
	"github.com/feeledger/backend/internal/infrastructure/persistence"
	"github.com/feeledger/backend/internal/infrastructure/scheduler"
	"github.com/feeledger/backend/internal/infrastructure/telemetry"
	"github.com/feeledger/backend/internal/interfaces/http/handler"
	"github.com/feeledger/backend/internal/interfaces/http/middleware"
	"github.com/feeledger/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Telemetry comes first so the logger can tee into the OTLP log pipeline
	bootLog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	providers, err := telemetry.NewProviders(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()
	zap.ReplaceGlobals(log)

	log.Info("Starting fee ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: logger.MapGormLogLevel(cfg.Log.Level),
		Tracing: telemetry.DBTracingConfig{
			Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			DBSystem: "postgresql",
		},
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	// Events are written to the outbox inside the settling transaction
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	repos := persistence.NewRepositories(db.DB, outboxPublisher)
	txScope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)

	// Gateway
	verifier, err := payment.NewHMACVerifier(cfg.Gateway.SignatureSecret)
	if err != nil {
		log.Warn("Gateway signature secret not set, online confirmations will be rejected", zap.Error(err))
	}
	issuer := newIssuer(cfg.Gateway, log)

	// Application services
	resolver := appfee.NewSessionResolver(repos, log)
	sessionService := appfee.NewSessionService(repos, txScope, log)
	scheduleService := appfee.NewScheduleService(repos, txScope, log)
	dueService := appfee.NewDueService(repos, log)
	chargeService := appfee.NewChargeService(repos, txScope, log)
	orderService := appfee.NewPaymentOrderService(repos, txScope, issuer, log)
	settlementService := appfee.NewSettlementService(repos, txScope, verifierOrNil(verifier), log)
	reportService := appfee.NewReportService(repos, log)
	outboxService := appevent.NewOutboxService(outboxRepo, log)

	meter := providers.Meter(telemetry.TracerName)
	settlementMetrics, err := telemetry.NewSettlementMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register settlement metrics", zap.Error(err))
	}
	settlementService.SetRecorder(settlementMetrics)

	// Notifications: outbox -> event bus -> idempotent receipt handler
	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	eventBus := event.NewInMemoryEventBus(log)
	notifications := event.NewIdempotentHandler(
		appfee.NewSettlementNotificationHandler(newDispatcher(cfg.Notification, log), log),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true}),
	)
	eventBus.Subscribe(notifications)
	log.Info("Event handlers registered", zap.Strings("notification_events", notifications.EventTypes()))

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Event.ProcessorEnabled {
		processor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  time.Hour,
		}, log)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := processor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", cfg.Event.BatchSize),
			zap.Duration("poll_interval", cfg.Event.PollInterval),
		)
	}

	// Nightly republish
	if cfg.Scheduler.Enabled {
		stop, err := startScheduler(ctx, cfg.Scheduler, appfee.NewPublishJob(repos, resolver, scheduleService, log), log)
		if err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer stop()
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled))
	engine.Use(httpMetrics)

	// Unauthenticated probes live on the engine, outside the API group
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)
	engine.GET("/health", systemHandler.Health)
	engine.GET("/system/info", systemHandler.GetSystemInfo)

	jwtService := auth.NewJWTService(cfg.JWT)
	r := router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithMiddleware(
		middleware.JWTAuth(middleware.JWTConfig{Validator: jwtService, Logger: log}),
		middleware.Tenant(),
		middleware.SessionOverride(log),
		middleware.SpanAttributes(),
	))

	var verifyLimit *middleware.RateLimiter
	if cfg.Gateway.VerifyRateLimit > 0 {
		verifyLimit = middleware.NewRateLimiter(cfg.Gateway.VerifyRateLimit, cfg.Gateway.VerifyRateWindow)
		go sweep(ctx, verifyLimit, cfg.Gateway.VerifyRateWindow)
		log.Info("Payment verify rate limit enabled",
			zap.Int("requests", cfg.Gateway.VerifyRateLimit),
			zap.Duration("window", cfg.Gateway.VerifyRateWindow),
		)
	}

	router.RegisterAll(r, router.Handlers{
		Sessions:  handler.NewSessionHandler(resolver, sessionService),
		Schedules: handler.NewScheduleHandler(resolver, scheduleService),
		Dues:      handler.NewDueHandler(resolver, dueService, settlementService),
		Batches:   handler.NewBatchHandler(resolver, chargeService, settlementService),
		Payments:  handler.NewPaymentHandler(resolver, orderService, settlementService),
		Reports:   handler.NewReportHandler(resolver, reportService),
		Outbox:    handler.NewOutboxHandler(outboxService),
	}, verifyLimit).Setup()

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopBackground()
	log.Info("Server exited gracefully")
}

// newIssuer registers orders with Midtrans Snap when a server key is set.
// Without one, orders are still created and settle through the verify
// endpoint.
func newIssuer(cfg config.GatewayConfig, log *zap.Logger) appfee.PaymentOrderIssuer {
	if cfg.MidtransServerKey == "" {
		log.Info("Midtrans not configured, payment orders carry no checkout link")
		return payment.NoopIssuer{}
	}
	issuer, err := payment.NewMidtransIssuer(payment.MidtransConfig{
		ServerKey:   cfg.MidtransServerKey,
		Environment: cfg.MidtransEnvironment,
		FinishURL:   cfg.FinishRedirectURL,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure Midtrans", zap.Error(err))
	}
	return issuer
}

// verifierOrNil keeps a nil *HMACVerifier from becoming a non-nil interface
func verifierOrNil(v *payment.HMACVerifier) appfee.SignatureVerifier {
	if v == nil {
		return nil
	}
	return v
}

// newDispatcher always logs notifications and also mails them when SendGrid
// is configured.
func newDispatcher(cfg config.NotificationConfig, log *zap.Logger) appfee.NotificationDispatcher {
	logDispatcher := notification.NewLogDispatcher(log.Named("notification"))
	if cfg.SendGridAPIKey == "" {
		return logDispatcher
	}
	mailer, err := notification.NewSendGridMailer(notification.SendGridConfig{
		APIKey:        cfg.SendGridAPIKey,
		FromAddress:   cfg.FromAddress,
		FromName:      cfg.FromName,
		OfficeAddress: cfg.OfficeAddress,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure SendGrid", zap.Error(err))
	}
	return notification.NewMultiDispatcher(logDispatcher, mailer)
}

// startScheduler runs the republish worker pool and its daily trigger. The
// returned func stops both.
func startScheduler(ctx context.Context, cfg config.SchedulerConfig, job *appfee.PublishJob, log *zap.Logger) (func(), error) {
	hour, minute, err := scheduler.ParseDailySchedule(cfg.DailyCronSchedule)
	if err != nil {
		return nil, err
	}
	pool := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay,
	}, scheduler.NewRepublishExecutor(job, log), log)
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}
	trigger := scheduler.NewTrigger(scheduler.TriggerConfig{
		Hour:          hour,
		Minute:        minute,
		CheckInterval: time.Minute,
	}, pool, job, log)
	if err := trigger.Start(ctx); err != nil {
		_ = pool.Stop(context.Background())
		return nil, err
	}
	log.Info("Republish scheduler started",
		zap.String("schedule", cfg.DailyCronSchedule),
		zap.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		zap.Duration("job_timeout", cfg.JobTimeout),
	)
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := trigger.Stop(stopCtx); err != nil {
			log.Error("Error stopping republish trigger", zap.Error(err))
		}
		if err := pool.Stop(stopCtx); err != nil {
			log.Error("Error stopping republish scheduler", zap.Error(err))
		}
	}, nil
}

func sweep(ctx context.Context, limiter *middleware.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
