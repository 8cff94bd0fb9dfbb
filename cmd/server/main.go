package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/cache"
	"github.com/subledger/backend/internal/infrastructure/config"
	"github.com/subledger/backend/internal/infrastructure/event"
	"github.com/subledger/backend/internal/infrastructure/export"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/notification"
	"github.com/subledger/backend/internal/infrastructure/persistence"
	"github.com/subledger/backend/internal/infrastructure/scheduler"
	"github.com/subledger/backend/internal/infrastructure/storage"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"github.com/subledger/backend/internal/interfaces/http/handler"
	"github.com/subledger/backend/internal/interfaces/http/middleware"
	"github.com/subledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

var version = "dev"

const (
	archiveBaseURL   = "/api/v1/reports/archive"
	maxBodyBytes     = 1 << 20
	paymentRateLimit = 30
	paymentRateWin   = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting subscription ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	logProvider, err := telemetry.NewLoggerProvider(rootCtx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = logProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      cfg.Telemetry.SpanProfiles,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	metrics, err := telemetry.NewBillingMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	database, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if database.Driver() == config.DriverSQLite {
			dbTracing.DBSystem = "sqlite"
		}
		if err := telemetry.RegisterDBTracing(database.DB, dbTracing, log); err != nil {
			log.Warn("Database tracing not installed", zap.Error(err))
		}
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", database.Driver()))

	backends, err := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Build()
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}

	clock := shared.NewSystemClock(cfg.Location())
	db := database.DB
	customers := persistence.NewGormCustomerRepository(db)
	installments := persistence.NewGormInstallmentRepository(db)
	payments := persistence.NewGormPaymentRepository(db)
	applications := persistence.NewGormPaymentApplicationRepository(db)
	notifications := persistence.NewGormNotificationRepository(db)
	txScope := persistence.NewGormTransactionScope(db)

	configService := appbilling.NewConfigService(persistence.NewGormBillingConfigRepository(db), seedBillingConfig(cfg.Billing), clock, log)
	if err := configService.EnsureDefault(rootCtx); err != nil {
		log.Fatal("Failed to seed billing configuration", zap.Error(err))
	}

	bus := event.NewInMemoryEventBus(log)
	aggregator := appbilling.NewDebtAggregator(customers, txScope, configService, backends.Locker, cfg.Billing.LockWait, clock, log,
		appbilling.WithAggregatorEvents(bus),
		appbilling.WithStatsCache(backends.Stats),
	)
	bus.Subscribe(appbilling.NewRecomputeHandler(aggregator, log))
	if err := bus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Notification delivery: log channel and websocket hub, both optional
	var (
		channels []billing.NotificationChannel
		channel  billing.NotificationChannel
		stream   http.Handler
		hub      *notification.Hub
	)
	if cfg.Notification.LogChannel {
		channels = append(channels, notification.NewLogChannel(log))
	}
	if cfg.Notification.WebsocketChannel {
		hub = notification.NewHub(log, cfg.Notification.AllowedOrigins)
		go hub.Run(rootCtx)
		channels = append(channels, hub)
		stream = hub
	}
	if len(channels) > 0 {
		channel = notification.NewMultiChannel(cfg.Notification.DeliveryTimeout, channels...)
	}

	generator := appbilling.NewInstallmentGenerator(customers, installments, configService, bus, clock, metrics, log)
	sweeper := appbilling.NewOverdueSweeper(txScope, configService, bus, clock, metrics, log)
	ledger := appbilling.NewPaymentLedger(txScope, aggregator, backends.Locker, bus, clock, metrics, appbilling.PaymentLedgerConfig{
		ReceiptPrefix: cfg.Billing.ReceiptPrefix,
		MaxAttempts:   cfg.Billing.MaxApplyAttempts,
		RetryBackoff:  cfg.Billing.RetryBackoff,
		LockWait:      cfg.Billing.LockWait,
	}, log)
	notifier := appbilling.NewNotificationScheduler(customers, installments, notifications, configService, channel, bus, clock, metrics, log)
	history := appbilling.NewHistoryService(customers, installments, payments, applications)
	stats := appbilling.NewStatisticsService(customers, backends.Stats, clock, log, appbilling.WithStatsTTL(cfg.Cache.StatsTTL))

	// Reports go to object storage when configured, otherwise they are kept
	// in process and served from the archive route
	reportOpts := []appbilling.ReportServiceOption{}
	var archived handler.ArchivedReports
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3ReportArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize report storage", zap.Error(err))
		}
		if err := s3Archive.EnsureBucket(rootCtx); err != nil {
			log.Warn("Report bucket unavailable, archiving will fail until it exists", zap.Error(err))
		}
		reportOpts = append(reportOpts, appbilling.WithReportArchive(s3Archive))
	} else {
		memArchive := storage.NewMemoryReportArchive(archiveBaseURL, cfg.Storage.PresignExpiration)
		reportOpts = append(reportOpts, appbilling.WithReportArchive(memArchive))
		archived = memArchive
	}
	if hub != nil {
		reportOpts = append(reportOpts, appbilling.WithReportNotifier(hub))
	}
	reports := appbilling.NewReportService(customers, history, export.NewDebtReportWriter(cfg.App.Name), export.ContentType, log, reportOpts...)

	runnerOpts := []scheduler.RunnerOption{scheduler.WithRunObserver(metrics)}
	if cfg.Scheduler.DistributedLock {
		runnerOpts = append(runnerOpts, scheduler.WithJobLocker(backends.Locker))
	}
	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		JobTimeout:  cfg.Scheduler.JobTimeout,
		HistorySize: cfg.Scheduler.HistorySize,
		Location:    cfg.Location(),
	}, log, runnerOpts...)
	schedules := map[string]string{
		appbilling.JobGenerateInstallments: cfg.Scheduler.GenerateSchedule,
		appbilling.JobSweepOverdue:         cfg.Scheduler.SweepSchedule,
		appbilling.JobRecomputeDebts:       cfg.Scheduler.RecomputeSchedule,
		appbilling.JobNotify:               cfg.Scheduler.NotifySchedule,
	}
	for _, job := range appbilling.Jobs(generator, sweeper, aggregator, notifier) {
		if err := runner.Register(job, schedules[job.Name()]); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name()), zap.Error(err))
		}
	}
	if cfg.Scheduler.Enabled {
		runner.Start()
	} else {
		log.Info("Scheduler disabled, jobs run only on demand")
	}

	health := handler.NewHealthHandler(cfg.App.Name, version).
		WithCheck("database", func(context.Context) error { return database.Ping() })
	if backends.Client != nil {
		health = health.WithCheck("redis", func(ctx context.Context) error { return backends.Client.Ping(ctx).Err() })
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Notification.AllowedOrigins
	engine.Use(
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Tracing(cfg.Telemetry.ServiceName),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(meter),
		middleware.CORS(cors),
		middleware.Secure(),
		middleware.BodyLimit(maxBodyBytes),
	)
	if profiler.IsEnabled() {
		engine.Use(middleware.Profiling())
	}

	limiter := middleware.NewRateLimiter(paymentRateLimit, paymentRateWin)
	go limiter.RunCleanup(rootCtx)

	router.Mount(engine, router.Handlers{
		Customer: handler.NewCustomerHandler(appbilling.NewCustomerService(customers, bus, clock, log)),
		Ledger: handler.NewLedgerHandler(handler.LedgerServices{
			Generator:  generator,
			Sweeper:    sweeper,
			Payments:   ledger,
			Calculator: appbilling.NewDebtCalculator(customers, installments, configService),
			Aggregator: aggregator,
			History:    history,
			Clock:      clock,
		}),
		Notification: handler.NewNotificationHandler(notifier, stream, clock),
		Config:       handler.NewConfigHandler(configService, stats),
		Report:       handler.NewReportHandler(reports, archived),
		Job:          handler.NewJobHandler(runner),
		Health:       health,
	}, router.LedgerOptions{
		PaymentGuard: []gin.HandlerFunc{middleware.RateLimit(limiter)},
	})

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := runner.Stop(ctx); err != nil {
		log.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}
	_ = bus.Stop(ctx)
	cancelRoot()

	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}
	if err := backends.Close(); err != nil {
		log.Warn("Error closing cache", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	_ = logProvider.Shutdown(context.Background())
}

// seedBillingConfig is the configuration persisted on first start. Later
// changes go through PUT /api/v1/config.
func seedBillingConfig(c config.BillingConfig) billing.BillingConfig {
	return billing.BillingConfig{
		DueDay:              c.DueDay,
		GraceDays:           c.GraceDays,
		LateFeeRate:         decimal.NewFromFloat(c.LateFeeRate).Round(4),
		UpcomingWindowDays:  c.UpcomingWindowDays,
		CutoffThresholdDays: c.CutoffThresholdDays,
		ReminderLeadDays:    c.ReminderLeadDays,
		CutoffWarningDays:   c.CutoffWarningDays,
	}
}
