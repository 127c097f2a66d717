package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshmandi/freshmandi-backend/api/routes"
	"github.com/freshmandi/freshmandi-backend/internal/inventory"
	"github.com/freshmandi/freshmandi-backend/internal/notifications"
	"github.com/freshmandi/freshmandi-backend/internal/orders"
	"github.com/freshmandi/freshmandi-backend/internal/payments"
	"github.com/freshmandi/freshmandi-backend/internal/routing"
	"github.com/freshmandi/freshmandi-backend/internal/vendors"
	"github.com/freshmandi/freshmandi-backend/internal/weather"
	"github.com/freshmandi/freshmandi-backend/internal/zones"
	"github.com/freshmandi/freshmandi-backend/pkg/config"
	"github.com/freshmandi/freshmandi-backend/pkg/db"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/metrics"
	"github.com/freshmandi/freshmandi-backend/pkg/migrate"
	"github.com/freshmandi/freshmandi-backend/pkg/pubsub"
	"github.com/freshmandi/freshmandi-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var notifier *notifications.Dispatcher
	if !cfg.PubSub.Disabled {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier = notifications.NewDispatcher(psClient, cfg.PubSub.OrderEventsTopic, logg)
	}

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	zonesService, err := zones.NewService(zones.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create zones service", err)
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

	strategy, err := vendors.NewStrategy(cfg.Routing.Mode, vendors.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create vendor strategy", err)
		os.Exit(1)
	}
	vendorsService, err := vendors.NewService(strategy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create vendors service", err)
		os.Exit(1)
	}

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

	var authorizer payments.Authorizer
	if cfg.Payments.BaseURL != "" {
		authorizer, err = payments.NewClient(cfg.Payments.BaseURL, cfg.Payments.RequestTimeout)
		if err != nil {
			logg.Error(context.Background(), "failed to create payments client", err)
			os.Exit(1)
		}
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Inventory: inventoryService,
		Payments:  authorizer,
		Notifier:  notifier,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	routingService, err := routing.NewService(routing.ServiceParams{
		Zones:     zonesService,
		Weather:   weatherService,
		Vendors:   vendorsService,
		Inventory: inventoryService,
		Tx:        dbClient,
		Orders:    ordersRepo,
		Payments:  authorizer,
		Notifier:  notifier,
		Metrics:   orderMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create routing service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:  cfg,
			Logger:  logg,
			DB:      dbClient,
			Redis:   redisClient,
			Routing: routingService,
			Orders:  ordersService,
			Weather: weatherService,
			Metrics: prometheus.DefaultGatherer,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
