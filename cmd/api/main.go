package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/voxdesk/scheduling/internal/api/router"
	"github.com/voxdesk/scheduling/internal/appointments"
	"github.com/voxdesk/scheduling/internal/availability"
	"github.com/voxdesk/scheduling/internal/booking"
	"github.com/voxdesk/scheduling/internal/calcom"
	appconfig "github.com/voxdesk/scheduling/internal/config"
	"github.com/voxdesk/scheduling/internal/notify"
	"github.com/voxdesk/scheduling/internal/observability/metrics"
	"github.com/voxdesk/scheduling/internal/schedule"
	"github.com/voxdesk/scheduling/internal/tools"
	"github.com/voxdesk/scheduling/pkg/logging"
)

func main() {
	// Local development convenience; in deployed environments the variables
	// come from the runtime.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	scheduleStore := schedule.NewStore(pool)
	apptRepo := appointments.NewPostgresRepository(pool)

	var availCache *availability.Cache
	if cfg.RedisAddr != "" && !cfg.DisableAvailCache {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		availCache = availability.NewCache(redis.NewClient(opts), cfg.AvailabilityTTL, logger)
		logger.Info("availability cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.AvailabilityTTL)
	}

	registry := prometheus.NewRegistry()
	schedMetrics := metrics.NewSchedulingMetrics(registry)

	providerFactory := calcom.NewFactory(cfg.CalcomBaseURL, cfg.CalcomTimeout, logger)

	notifier := notify.NewService(buildEmailSender(ctx, cfg, logger), scheduleStore, logger)

	bookingSvc := booking.NewService(
		scheduleStore,
		apptRepo,
		providerFactory,
		notifier,
		availCache,
		schedMetrics,
		cfg.DefaultSlotMinutes,
		logger,
	)
	availEngine := availability.NewEngine(scheduleStore, apptRepo, availCache, cfg.DefaultSlotMinutes, logger)

	toolsHandler := tools.NewHandler(bookingSvc, availEngine, schedMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ToolsHandler:       toolsHandler,
		ToolAuthToken:      cfg.ToolAuthToken,
		RateLimitPerSecond: cfg.ToolRateLimit,
		RateLimitBurst:     cfg.ToolRateBurst,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildEmailSender picks the configured email provider. Notifications are
// optional: with no usable provider the notify service runs with a nil
// sender and skips sends.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" || cfg.SendGridFromEmail == "" {
			logger.Warn("sendgrid not configured, owner notifications disabled")
			return nil
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "ses":
		if cfg.SESFromEmail == "" {
			logger.Warn("ses not configured, owner notifications disabled")
			return nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config, owner notifications disabled", "error", err)
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	case "stub":
		return notify.NewStubEmailSender(logger)
	default:
		logger.Warn("unknown email provider, owner notifications disabled", "provider", cfg.EmailProvider)
		return nil
	}
}
