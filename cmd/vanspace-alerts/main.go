package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/config"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/handlers"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/jobs"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/middleware"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/services"
	slackutil "github.com/Acontraveta/Vanspace-Workshop-sub001/internal/slack"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/snapshot"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}
	logger.Info("starting vanspace alert service", zap.String("version", handlers.Version))

	gormLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		gormLevel = gormlogger.Info
	}

	// Durable alert store
	if err := database.Connect(cfg.DatabaseURL, gormLevel); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	if err := database.InitializeDefaults(database.GetDB(), alerts.PersistentTriggerDefaults()); err != nil {
		logger.Fatal("failed to seed default triggers", zap.Error(err))
	}

	// Business snapshots with a local last-known-good copy
	if err := os.MkdirAll(filepath.Dir(cfg.SnapshotCachePath), 0755); err != nil {
		logger.Fatal("failed to create snapshot cache directory", zap.Error(err))
	}
	cacheDB, err := database.OpenLocal(cfg.SnapshotCachePath, gormlogger.Warn)
	if err != nil {
		logger.Fatal("failed to open snapshot cache", zap.Error(err))
	}
	client := snapshot.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.BackendTimeout)
	sources := snapshot.NewSources(client, database.NewSnapshotCache(cacheDB))

	overrides, err := config.LoadTriggerOverrides(cfg.TriggerDefaultsFile)
	if err != nil {
		logger.Fatal("failed to load trigger defaults file", zap.Error(err))
	}
	liveDefaults, err := alerts.ApplyOverrides(alerts.LiveTriggerDefaults(), overrides)
	if err != nil {
		logger.Fatal("invalid trigger defaults file", zap.Error(err))
	}
	if len(overrides) > 0 {
		logger.Info("applied live trigger overrides", zap.Int("count", len(overrides)))
	}

	wsHandler := handlers.NewAlertsWSHandler(middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...).AllowsRequest)

	opts := services.AlertServiceOptions{
		TriggerCacheTTL: cfg.TriggerCacheTTL,
		LiveDefaults:    liveDefaults,
		Publisher:       wsHandler,
	}
	if cfg.SlackEnabled() {
		opts.Notifier = slackutil.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertsChannel)
		logger.Info("slack notifications enabled", zap.String("channel", cfg.SlackAlertsChannel))
	} else {
		logger.Info("slack notifications disabled")
	}

	alertService := services.NewAlertService(database.NewAlertStore(database.GetDB()), sources, opts)

	refreshJob := jobs.NewAlertRefreshJob(alertService, 2*time.Minute)
	if err := refreshJob.Start(cfg.RefreshSchedule); err != nil {
		logger.Fatal("failed to start alert refresh job", zap.Error(err))
	}
	go func() {
		// first pass at startup instead of waiting a full interval
		_, _ = refreshJob.RunOnce(context.Background())
	}()

	// Authentication
	var passwordHash string
	if cfg.AuthEnabled {
		passwordHash, err = middleware.HashPassword(cfg.AdminPassword)
		if err != nil {
			logger.Fatal("failed to hash admin password", zap.Error(err))
		}
	} else {
		logger.Warn("authentication disabled, every caller acts as admin")
	}
	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           cfg.AuthEnabled,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
		},
	})

	// Set up HTTP server routes
	mux := http.NewServeMux()
	handlers.NewHTTPHandler().SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuthMiddleware, cfg.JWTExpiryHours).SetupRoutes(mux)
	handlers.NewAlertsHandler(alertService, cfg.RunNowRatePerMinute).SetupRoutes(mux)
	wsHandler.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...)
	handler := middleware.RequestIDMiddleware(
		middleware.AccessLogMiddleware(
			corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux))))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal, cleaning up", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	wsHandler.Close()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("error shutting down HTTP server", zap.Error(err))
	}
	refreshJob.Stop(ctx)

	if sqlDB, err := cacheDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("shutdown complete")
}
