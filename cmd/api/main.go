package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymbook/internal/api"
	"gymbook/internal/config"
	"gymbook/internal/database"
	"gymbook/internal/delivery"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/export"
	"gymbook/internal/logging"
	"gymbook/internal/metrics"
	"gymbook/internal/otp"
	"gymbook/internal/repository"
	"gymbook/internal/service"
	"gymbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := service.SystemClock()
	eventBus := events.NewEventBus()
	deliverer := delivery.NewLogDelivery(&logger)

	capacity := service.NewCapacityManager(db, &logger)
	bookings := service.NewBookingService(db, capacity, eventBus, clock,
		time.Duration(cfg.Booking.ReminderOffsetMinutes)*time.Minute, &logger)
	checkin := service.NewCheckInService(db, eventBus, clock, &logger)
	ratings := service.NewRatingService(db, eventBus, clock,
		time.Duration(cfg.Booking.RatingWindowHours)*time.Hour, &logger)

	otpService := initOTP(ctx, cfg, clock, deliverer, &logger)

	dispatcher := worker.NewDispatcher(db, deliverer, clock,
		time.Duration(cfg.Scheduler.PollIntervalMinutes)*time.Minute,
		cfg.Scheduler.BatchSize,
		worker.RetryPolicy{MaxAttempts: cfg.Scheduler.MaxAttempts},
		&logger)
	go dispatcher.Start(ctx)

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Bookings: bookings,
		CheckIn:  checkin,
		Ratings:  ratings,
		OTP:      otpService,
		Repo:     db,
		Exporter: exporter,
		Clock:    clock,
		Grace:    time.Duration(cfg.Booking.SweepGraceHours) * time.Hour,
	}, &logger)

	return serveHTTP(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initOTP собирает стек одноразовых кодов: redis как основное хранилище с
// откатом на память, либо только память, если redis не настроен.
func initOTP(ctx context.Context, cfg *config.Config, clock domain.Clock, deliverer domain.Delivery, logger *zerolog.Logger) *otp.Service {
	limiter := otp.NewRateLimiter(
		time.Duration(cfg.OTP.CooldownSeconds)*time.Second,
		cfg.OTP.HourlyLimit,
		clock,
	)
	go limiter.StartPruning(ctx, 10*time.Minute)

	var store domain.OTPStore = repository.NewMemoryOTPStore()

	if cfg.Redis.Address != "" {
		redisClient := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("redis connection failed, otp codes stay in memory")
		} else {
			logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
			store = repository.NewFailoverOTPStore(
				repository.NewRedisOTPStore(redisClient),
				repository.NewMemoryOTPStore(),
				logger,
			)
		}
	}

	return otp.NewService(limiter, store, deliverer,
		time.Duration(cfg.OTP.CodeTTLSeconds)*time.Second, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serveHTTP(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
