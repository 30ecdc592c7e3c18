package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/background"
	"github.com/mwhitfield/vigil/internal/config"
	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/geo"
	"github.com/mwhitfield/vigil/internal/handlers"
	"github.com/mwhitfield/vigil/internal/identity"
	middlewareCustom "github.com/mwhitfield/vigil/internal/middleware"
	"github.com/mwhitfield/vigil/internal/repositories"
	"github.com/mwhitfield/vigil/internal/routes"
	"github.com/mwhitfield/vigil/internal/services"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
	pkglogger "github.com/mwhitfield/vigil/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	auditLogRepo := repositories.NewAuditLogRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)
	quotaRepo := repositories.NewQuotaRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Audit trail (structured log + best-effort database write)
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditLogRepo, auditLogger, logger)

	// AWS SES alert delivery
	notifier, err := services.NewAWSSESNotifier(
		cfg.Alerts.SESRegion,
		cfg.Alerts.FromAddress,
		cfg.Alerts.AdminAddresses,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize alert notifier", slog.Any("error", err))
		os.Exit(1)
	}
	alertDispatcher := services.NewAlertDispatcher(notifier, cfg.Alerts.DeliveryTimeout, logger)

	// External identity provider verifies credentials; geo lookup is
	// optional and degrades to no location data.
	verifier := identity.NewHTTPVerifier(cfg.Identity.BaseURL, cfg.Identity.Timeout)
	var resolver geo.Resolver = geo.NoopResolver{}
	if cfg.Anomaly.GeoServiceURL != "" {
		resolver = geo.NewHTTPResolver(cfg.Anomaly.GeoServiceURL, cfg.Anomaly.GeoLookupTimeout)
	}

	fingerprinter := auth.NewFingerprinter(cfg.Auth.FingerprintKey)
	if cfg.Auth.FingerprintKey == "" {
		logger.Warn("FINGERPRINT_KEY not set, device fingerprints are unkeyed")
	}

	// Initialize services
	anomalyService := services.NewAnomalyService(loginAttemptRepo, cfg.Anomaly.SpeedThresholdKmh, cfg.Anomaly.MinElapsed, logger)
	guardService := services.NewLoginGuardService(
		loginAttemptRepo,
		lockoutRepo,
		verifier,
		resolver,
		fingerprinter,
		anomalyService,
		auditService,
		alertDispatcher,
		cfg.Guard,
		cfg.Anomaly.GeoLookupTimeout,
		logger,
	)
	quotaService := services.NewQuotaService(quotaRepo, auditService, alertDispatcher, cfg.Quota.DailyLimit, logger)
	sessionService := services.NewSessionService(
		sessionRepo,
		fingerprinter,
		resolver,
		cfg.Anomaly.GeoLookupTimeout,
		auditService,
		alertDispatcher,
		logger,
	)
	retentionService := services.NewRetentionService(
		loginAttemptRepo,
		auditLogRepo,
		cfg.Retention.AttemptWindow,
		cfg.Retention.AuditWindow,
		auditService,
		logger,
	)

	// Initialize retention manager
	retentionManager := background.NewRetentionManager(retentionService, logger, cfg.Retention.Interval)

	// Token validation for provider-issued access tokens
	validator := auth.NewTokenValidator(cfg.Auth.JWTSecret)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(cfg.Auth.TimingDelayBase, cfg.Auth.TimingDelayJitter)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(guardService, timingDelay, ipConfig)
	sessionHandler := handlers.NewSessionHandler(sessionService, ipConfig)
	quotaHandler := handlers.NewQuotaHandler(quotaService, ipConfig)
	adminHandler := handlers.NewAdminHandler(guardService, quotaService, sessionService, auditService, ipConfig)
	retentionHandler := handlers.NewRetentionHandler(retentionService)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(
		router,
		authHandler,
		sessionHandler,
		quotaHandler,
		adminHandler,
		retentionHandler,
		validator,
		sessionService,
		ipConfig,
		cfg.Retention.Secret,
	)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		stats := db.Stats()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","database":"up","pool_total":%d,"pool_idle":%d}`,
			stats.TotalConns(), stats.IdleConns())
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start retention scheduler
	retentionCtx, retentionCancel := context.WithCancel(context.Background())
	defer retentionCancel()

	go retentionManager.Start(retentionCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	retentionCancel()
	retentionManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
