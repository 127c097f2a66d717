package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshmandi/freshmandi-backend/internal/cron"
	"github.com/freshmandi/freshmandi-backend/internal/inventory"
	"github.com/freshmandi/freshmandi-backend/internal/weather"
	"github.com/freshmandi/freshmandi-backend/pkg/config"
	"github.com/freshmandi/freshmandi-backend/pkg/db"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/metrics"
	"github.com/freshmandi/freshmandi-backend/pkg/migrate"
	"github.com/freshmandi/freshmandi-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Tx:          dbClient,
		Repo:        inventory.NewRepository(dbClient.DB()),
		HoldTTL:     cfg.Reservation.HoldTTL,
		MaxRetries:  cfg.Reservation.MaxRetries,
		BaseBackoff: cfg.Reservation.BaseBackoff,
		Metrics:     orderMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	var weatherProvider weather.Provider
	if cfg.Weather.ProviderURL != "" {
		weatherProvider, err = weather.NewHTTPProvider(cfg.Weather.ProviderURL, cfg.Weather.RequestTimeout)
		if err != nil {
			logg.Error(context.Background(), "failed to create weather provider", err)
			os.Exit(1)
		}
	}
	weatherService, err := weather.NewService(weather.ServiceParams{
		Repo:     weather.NewRepository(dbClient.DB()),
		Provider: weatherProvider,
		StaleTTL: cfg.Weather.StaleTTL,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create weather service", err)
		os.Exit(1)
	}

	sweeperJob, err := cron.NewReservationSweeperJob(cron.ReservationSweeperJobParams{
		Logger:    logg,
		Inventory: inventoryService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation sweeper job", err)
		os.Exit(1)
	}
	pollJob, err := cron.NewWeatherPollJob(cron.WeatherPollJobParams{
		Logger:  logg,
		Weather: weatherService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create weather poll job", err)
		os.Exit(1)
	}

	// The sweeper and the weather poller run on different cadences, so each
	// gets its own service loop and lock.
	sweeperService, err := newCronService(cfg, logg, redisClient, metricsCollector, "reservation-sweeper", cfg.Cron.Interval, sweeperJob)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper cron service", err)
		os.Exit(1)
	}
	weatherCronService, err := newCronService(cfg, logg, redisClient, metricsCollector, "weather-poll", cfg.Weather.PollInterval, pollJob)
	if err != nil {
		logg.Error(context.Background(), "failed to create weather cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go func() {
		if err := weatherCronService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "weather poll loop stopped unexpectedly", err)
			stop()
		}
	}()

	if err := sweeperService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newCronService(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	metricsCollector *metrics.CronJobMetrics,
	name string,
	interval time.Duration,
	jobs ...cron.Job,
) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(name), cfg.Cron.LockTTL)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: interval,
	})
}
