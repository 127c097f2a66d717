package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshmandi/freshmandi-backend/api/controllers"
	ordercontrollers "github.com/freshmandi/freshmandi-backend/api/controllers/orders"
	webhookcontrollers "github.com/freshmandi/freshmandi-backend/api/controllers/webhooks"
	"github.com/freshmandi/freshmandi-backend/api/middleware"
	internalorders "github.com/freshmandi/freshmandi-backend/internal/orders"
	"github.com/freshmandi/freshmandi-backend/internal/routing"
	"github.com/freshmandi/freshmandi-backend/internal/weather"
	"github.com/freshmandi/freshmandi-backend/pkg/config"
	"github.com/freshmandi/freshmandi-backend/pkg/db"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	pkgredis "github.com/freshmandi/freshmandi-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      *pkgredis.Client
	Routing    routing.Service
	Orders     internalorders.Service
	Weather    weather.Service
	Metrics    prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger pkgredis.Pinger
	if params.Redis != nil {
		redisPinger = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, redisPinger))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(params.Orders, cfg.Payments.WebhookSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.Redis != nil {
			r.Use(middleware.Idempotency(params.Redis, logg))
		}

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Place(params.Routing, logg))
			r.Get("/", ordercontrollers.List(params.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(params.Orders, logg))
			r.Post("/{orderId}/status", ordercontrollers.UpdateStatus(params.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(params.Orders, logg))
		})

		r.Route("/zones", func(r chi.Router) {
			r.Get("/{zoneId}/weather-policy", controllers.ZoneWeatherPolicy(params.Weather, logg))
		})
	})

	return r
}
