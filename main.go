package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mirvisek/RiseGen/internal/config"
	"github.com/Mirvisek/RiseGen/internal/controller"
	"github.com/Mirvisek/RiseGen/internal/gatekeeper"
	"github.com/Mirvisek/RiseGen/internal/metrics"
	"github.com/Mirvisek/RiseGen/internal/middleware"
	"github.com/Mirvisek/RiseGen/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func setupLogger(cfg *config.Config) zerolog.Level {
	level, err := zerolog.ParseLevel(cfg.LogLevel)

	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	return level
}

func main() {
	cfg, err := config.Load()

	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level := setupLogger(cfg)

	log.Info().Str("environment", cfg.Environment).Str("database", cfg.DatabasePath).Msg("starting risegen")

	if missing := cfg.MissingSettings(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("some features are disabled until these settings are provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	databaseService := services.NewDatabaseService(services.DatabaseServiceConfig{
		DatabasePath: cfg.DatabasePath,
	})

	if err := databaseService.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	defer databaseService.Close()

	database := databaseService.GetDatabase()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// Services
	authService := services.NewAuthService(database)

	if err := authService.SeedSuperAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to seed administrator account")
	}

	sessionService := services.NewSessionService(services.SessionServiceConfig{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: !cfg.IsDevelopment(),
	})

	rateLimitService := services.NewRateLimitService(services.RateLimitServiceConfig{
		SweepInterval: cfg.RateLimitSweepInterval,
		StaleAfter:    cfg.RateLimitStaleAfter,
	})

	rateLimitService.Start(ctx)
	defer rateLimitService.Stop()

	var mirror services.BackupMirror

	if cfg.BackupS3Bucket != "" {
		s3Mirror, err := services.NewS3Mirror(ctx, services.S3MirrorConfig{
			Bucket:    cfg.BackupS3Bucket,
			Region:    cfg.BackupS3Region,
			Endpoint:  cfg.BackupS3Endpoint,
			Prefix:    cfg.BackupS3Prefix,
			AccessKey: cfg.BackupS3AccessKey,
			SecretKey: cfg.BackupS3SecretKey,
		})

		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure backup mirror")
		}

		mirror = s3Mirror
		log.Info().Str("bucket", cfg.BackupS3Bucket).Msg("backups are mirrored to s3")
	}

	backupService := services.NewBackupService(services.BackupServiceConfig{
		SourcePath: cfg.DatabasePath,
		BackupDir:  cfg.BackupDir,
	}, afero.NewOsFs(), mirror)

	mailService := services.NewMailService(services.MailServiceConfig{
		APIKey:  cfg.ResendAPIKey,
		BaseURL: cfg.ResendBaseURL,
		From:    cfg.MailFrom,
	})

	dripService := services.NewDripService(services.DripServiceConfig{
		BatchSize: cfg.DripBatchSize,
		Lease:     cfg.DripLease,
		SiteURL:   cfg.SiteURL,
	}, database, mailService, appMetrics)

	newsletterService := services.NewNewsletterService(services.NewsletterServiceConfig{
		BatchSize: cfg.DripBatchSize,
		SiteURL:   cfg.SiteURL,
	}, database, mailService, dripService.WelcomeStep(), appMetrics)

	gk := gatekeeper.New(gatekeeper.Config{
		Environment:     cfg.Environment,
		CanonicalHost:   cfg.CanonicalHost,
		BareDomains:     cfg.BareDomains,
		RateLimitWindow: cfg.RateLimitWindow,
		SensitiveLimit:  cfg.RateLimitSensitive,
		GeneralLimit:    cfg.RateLimitGeneral,
	}, rateLimitService)

	// Router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("invalid trusted proxies")
	}

	if cfg.TrustCloudflare {
		engine.TrustedPlatform = gin.PlatformCloudflare
	}

	engine.Use(middleware.NewZerologMiddleware(level).Middleware())

	if len(cfg.CORSAllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "HEAD"},
			AllowHeaders:     []string{"Origin", "Content-Type", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"x-ratelimit-limit", "x-ratelimit-remaining", "x-ratelimit-reset"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	engine.Use(middleware.NewGatekeeperMiddleware(gk, sessionService, appMetrics).Middleware())

	apiRouter := engine.Group("/api")
	adminRouter := engine.Group("/admin")

	// Controllers
	healthController := controller.NewHealthController(apiRouter, databaseService, cfg.MissingSettings)
	healthController.SetupRoutes()

	authController := controller.NewAuthController(apiRouter, adminRouter, authService, sessionService)
	authController.SetupRoutes()

	backupController := controller.NewBackupController(controller.BackupControllerConfig{
		CronSecret: cfg.CronSecret,
		OnDemand:   services.KeepFor(cfg.BackupMaxAge),
		Scheduled:  services.KeepLast(cfg.BackupKeepScheduled),
	}, apiRouter, backupService, sessionService, appMetrics)
	backupController.SetupRoutes()

	dripController := controller.NewDripController(apiRouter, dripService)
	dripController.SetupRoutes()

	newsletterController := controller.NewNewsletterController(apiRouter, newsletterService, sessionService)
	newsletterController.SetupRoutes()

	visitController := controller.NewVisitController(apiRouter, database)
	visitController.SetupRoutes()

	metricsController := controller.NewMetricsController(&engine.RouterGroup, registry, sessionService)
	metricsController.SetupRoutes()

	go databaseService.CleanUpOldVisits(ctx, 24*time.Hour, cfg.VisitRetention)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", srv.Addr).Msg("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
